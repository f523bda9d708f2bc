package runtime

import (
	"log/slog"
	"sync"

	"portal-chat/contract"
	"portal-chat/domain"
)

var _ contract.IRegistry = (*Registry)(nil)

type entry struct {
	conn *domain.Connection
	sink contract.MessageSink
}

// Registry tracks live sessions and owns their sinks: it is the only
// component allowed to close a sink, which keeps the close/deliver race out
// of the broadcast path.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	sessions map[string]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		sessions: make(map[string]entry),
	}
}

// Register makes a session eligible for broadcast. A duplicate session ID
// replaces the previous entry and closes its sink.
func (r *Registry) Register(conn *domain.Connection, sink contract.MessageSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[conn.SessionID]; ok {
		prev.conn.Set(domain.StateClosed)
		prev.sink.Close()
	}
	r.sessions[conn.SessionID] = entry{conn: conn, sink: sink}
	r.log.Info("session registered",
		slog.String("session_id", conn.SessionID),
		slog.String("identity", conn.Identity))
}

// Unregister is idempotent. It closes the session's sink and marks the
// connection closed, so in-flight deliveries fail cleanly.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	e.conn.Set(domain.StateClosed)
	e.sink.Close()
	delete(r.sessions, sessionID)
	r.log.Info("session unregistered", slog.String("session_id", sessionID))
}

func (r *Registry) IdentityOf(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return e.conn.Identity, true
}

// Broadcast offers the message to every registered sink. A failed delivery
// disconnects that one session; the others are unaffected.
func (r *Registry) Broadcast(msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		if e.conn.State() == domain.StateClosed {
			e.sink.Close()
			delete(r.sessions, id)
			continue
		}
		if err := e.sink.Deliver(msg); err != nil {
			r.log.Warn("dropping session",
				slog.String("session_id", id),
				slog.String("error", err.Error()))
			e.conn.Set(domain.StateClosed)
			e.sink.Close()
			delete(r.sessions, id)
		}
	}
}

// Count reports the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
