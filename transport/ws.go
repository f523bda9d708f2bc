package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/net/websocket"

	"portal-chat/auth"
	"portal-chat/domain"
	apperrors "portal-chat/errors"
	"portal-chat/services"
	"portal-chat/sink"
)

// Wire event names, shared with the browser client.
const (
	eventSendMessage      = "sendMessage"
	eventPreviousMessages = "previousMessages"
	eventReceiveMessage   = "receiveMessage"
	eventError            = "error"
)

var validate = validator.New()

type wsFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type sendMessagePayload struct {
	Text string `json:"text" validate:"required,max=2000"`
	// Client timestamps are advisory only; the server clock is authoritative.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type messagePayload struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  uint64    `json:"sequence"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsPeer serializes writes to one socket. The backfill writer and the live
// delivery writer both go through it.
type wsPeer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newWSPeer(ws *websocket.Conn) *wsPeer {
	return &wsPeer{enc: json.NewEncoder(ws)}
}

func (p *wsPeer) writeFrame(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(wsFrame{Event: event, Payload: raw})
}

// ChatHandler upgrades authenticated requests to websocket sessions.
type ChatHandler struct {
	log           *slog.Logger
	service       services.IChatService
	authenticator *auth.Authenticator
	bufferSize    int
}

func NewChatHandler(
	log *slog.Logger,
	service services.IChatService,
	authenticator *auth.Authenticator,
	bufferSize int,
) *ChatHandler {
	return &ChatHandler{
		log:           log,
		service:       service,
		authenticator: authenticator,
		bufferSize:    bufferSize,
	}
}

// Handler authenticates before the upgrade so a bad token costs a plain 401
// instead of a torn-down socket.
func (h *ChatHandler) Handler() http.Handler {
	wsHandler := websocket.Handler(h.handleConn)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := auth.TokenFromRequest(r)
		if !ok {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		identity, err := h.authenticator.ValidateToken(tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		wsHandler.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func (h *ChatHandler) handleConn(ws *websocket.Conn) {
	defer ws.Close()
	ctx := ws.Request().Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return
	}

	conn := domain.NewConnection(uuid.NewString(), identity)
	peer := newWSPeer(ws)
	deliverySink := sink.NewBufferedSink(h.bufferSize)

	watermark, err := h.service.Join(ctx, conn, deliverySink)
	if err != nil {
		h.log.Error("join failed", slog.String("error", err.Error()))
		return
	}
	defer h.service.Leave(conn.SessionID)

	backlog, err := h.service.Backfill(watermark)
	if err != nil {
		h.log.Error("backfill failed",
			slog.String("session_id", conn.SessionID),
			slog.String("error", err.Error()))
		h.writeErrorFrame(peer, err)
		return
	}
	if err := peer.writeFrame(eventPreviousMessages, toPayloads(backlog)); err != nil {
		return
	}
	conn.Set(domain.StateLive)

	h.log.Info("session live",
		slog.String("session_id", conn.SessionID),
		slog.String("identity", identity))

	go func() {
		for msg := range deliverySink.Events() {
			if err := peer.writeFrame(eventReceiveMessage, toPayload(msg)); err != nil {
				ws.Close()
				return
			}
		}
		ws.Close()
	}()

	h.readLoop(ws, peer, conn)
}

func (h *ChatHandler) readLoop(ws *websocket.Conn, peer *wsPeer, conn *domain.Connection) {
	dec := json.NewDecoder(ws)
	for {
		var frame wsFrame
		if err := dec.Decode(&frame); err != nil {
			return
		}
		switch frame.Event {
		case eventSendMessage:
			h.handleSend(ws, peer, conn, frame.Payload)
		default:
			h.log.Debug("ignoring unknown event",
				slog.String("session_id", conn.SessionID),
				slog.String("event", frame.Event))
		}
	}
}

func (h *ChatHandler) handleSend(ws *websocket.Conn, peer *wsPeer, conn *domain.Connection, raw json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.writeErrorFrame(peer, apperrors.ErrEmptyText)
		return
	}
	if err := validate.Struct(payload); err != nil {
		h.writeErrorFrame(peer, apperrors.ErrEmptyText)
		return
	}
	if err := h.service.Ingest(ws.Request().Context(), conn.SessionID, payload.Text); err != nil {
		h.writeErrorFrame(peer, err)
	}
}

func (h *ChatHandler) writeErrorFrame(peer *wsPeer, err error) {
	frameErr := peer.writeFrame(eventError, errorPayload{
		Code:    apperrors.Code(err),
		Message: err.Error(),
	})
	if frameErr != nil {
		h.log.Debug("error frame not delivered", slog.String("error", frameErr.Error()))
	}
}

func toPayload(msg domain.Message) messagePayload {
	return messagePayload{
		Sender:    msg.Sender,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		Sequence:  msg.Sequence,
	}
}

func toPayloads(messages []domain.Message) []messagePayload {
	return lo.Map(messages, func(msg domain.Message, _ int) messagePayload {
		return toPayload(msg)
	})
}
