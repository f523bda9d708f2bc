package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "portal-chat"

// CustomClaims carries the chat identity inside a standard JWT.
type CustomClaims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// Authenticator validates the tokens minted by the account service. Both
// sides share the same HMAC secret.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// GenerateToken signs a token for the given identity. The server never mints
// tokens for clients; this exists for the viewer tool and for tests.
func (a *Authenticator) GenerateToken(identity string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := CustomClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, returning the identity it
// carries.
func (a *Authenticator) ValidateToken(tokenString string) (string, error) {
	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return "", jwt.ErrSignatureInvalid
	}
	if claims.Identity == "" {
		return "", fmt.Errorf("token carries no identity")
	}
	return claims.Identity, nil
}
