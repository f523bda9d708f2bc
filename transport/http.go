package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"portal-chat/auth"
	"portal-chat/domain"
	apperrors "portal-chat/errors"
)

// API carries the REST fallback endpoints: reading history and purging the
// log without a websocket session.
type API struct {
	log     *slog.Logger
	service serviceFacade
}

// serviceFacade is the slice of the chat service the REST surface needs.
type serviceFacade interface {
	History() ([]domain.Message, error)
	PurgeIfAuthorized(ctx context.Context, identity string) (int, error)
}

type historyResponse struct {
	Success  bool             `json:"success"`
	Messages []messagePayload `json:"messages"`
}

type purgeResponse struct {
	Success      bool `json:"success"`
	DeletedCount int  `json:"deletedCount"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// NewRouter wires the websocket upgrade, the REST endpoints and the health
// probe behind one chi mux.
func NewRouter(
	log *slog.Logger,
	service serviceFacade,
	authenticator *auth.Authenticator,
	chatHandler *ChatHandler,
) *chi.Mux {
	api := &API{log: log, service: service}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/ws", chatHandler.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authenticator.Middleware)
		r.Get("/api/chat/messages", api.GetMessages)
		r.Delete("/api/chat/messages", api.DeleteMessages)
	})

	return r
}

func (a *API) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := a.service.History()
	if err != nil {
		a.writeError(w, err)
		return
	}
	payloads := toPayloads(messages)
	if payloads == nil {
		payloads = []messagePayload{}
	}
	a.writeJSON(w, http.StatusOK, historyResponse{Success: true, Messages: payloads})
}

func (a *API) DeleteMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	deleted, err := a.service.PurgeIfAuthorized(r.Context(), identity)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, purgeResponse{Success: true, DeletedCount: deleted})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := apperrors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", slog.String("error", err.Error()))
	}
	a.writeJSON(w, status, errorResponse{
		Success: false,
		Code:    apperrors.Code(err),
		Error:   err.Error(),
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Error("encode response", slog.String("error", err.Error()))
	}
}
