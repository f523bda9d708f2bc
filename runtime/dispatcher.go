package runtime

import (
	"context"
	"log/slog"
	"strings"

	"portal-chat/contract"
	"portal-chat/domain"
	apperrors "portal-chat/errors"
	"portal-chat/moderation"
)

var (
	_ contract.IDispatcher = (*Dispatcher)(nil)
	_ contract.Worker      = (*Dispatcher)(nil)
)

type postResult struct {
	err error
}

type postCommand struct {
	sessionID string
	text      string
	reply     chan postResult
}

type joinResult struct {
	watermark uint64
}

type joinCommand struct {
	conn  *domain.Connection
	sink  contract.MessageSink
	reply chan joinResult
}

type purgeResult struct {
	deleted int
	err     error
}

type purgeCommand struct {
	reply chan purgeResult
}

// Dispatcher is the single writer. Every append, broadcast, join watermark
// capture and purge runs on its one goroutine, which is what makes the
// store order and the delivery order the same order.
type Dispatcher struct {
	log       *slog.Logger
	store     contract.IMessageStore
	registry  contract.IRegistry
	moderator *moderation.Moderator
	commands  chan any
}

func NewDispatcher(
	log *slog.Logger,
	store contract.IMessageStore,
	registry contract.IRegistry,
	moderator *moderation.Moderator,
	queueSize int,
) *Dispatcher {
	return &Dispatcher{
		log:       log,
		store:     store,
		registry:  registry,
		moderator: moderator,
		commands:  make(chan any, queueSize),
	}
}

// Ingest submits a message for append and broadcast. The enqueue is
// non-blocking: a full queue fails fast with ErrOverloaded instead of
// applying backpressure to the transport goroutine.
func (d *Dispatcher) Ingest(ctx context.Context, sessionID, rawText string) error {
	cmd := postCommand{
		sessionID: sessionID,
		text:      rawText,
		reply:     make(chan postResult, 1),
	}
	select {
	case d.commands <- cmd:
	default:
		return apperrors.ErrOverloaded
	}

	select {
	case res := <-cmd.reply:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join registers the session and returns the backfill watermark. Both happen
// inside the dispatch loop, so no broadcast can slip between them: everything
// above the watermark reaches the new sink, everything at or below it belongs
// to the snapshot.
func (d *Dispatcher) Join(ctx context.Context, conn *domain.Connection, s contract.MessageSink) (uint64, error) {
	cmd := joinCommand{conn: conn, sink: s, reply: make(chan joinResult, 1)}
	select {
	case d.commands <- cmd:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res.watermark, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Leave tears the session down immediately; it does not ride the command
// queue because a disconnected socket should stop receiving right away.
func (d *Dispatcher) Leave(sessionID string) {
	d.registry.Unregister(sessionID)
}

// Purge rides the command queue so it is serialized against appends.
func (d *Dispatcher) Purge(ctx context.Context) (int, error) {
	cmd := purgeCommand{reply: make(chan purgeResult, 1)}
	select {
	case d.commands <- cmd:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res.deleted, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Run drains the command queue until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return ctx.Err()
		case raw := <-d.commands:
			switch cmd := raw.(type) {
			case postCommand:
				cmd.reply <- postResult{err: d.post(cmd.sessionID, cmd.text)}
			case joinCommand:
				cmd.conn.Set(domain.StateBackfilling)
				watermark := d.store.LastSequence()
				d.registry.Register(cmd.conn, cmd.sink)
				cmd.reply <- joinResult{watermark: watermark}
			case purgeCommand:
				deleted, err := d.store.Purge()
				cmd.reply <- purgeResult{deleted: deleted, err: err}
			}
		}
	}
}

func (d *Dispatcher) post(sessionID, rawText string) error {
	identity, ok := d.registry.IdentityOf(sessionID)
	if !ok {
		return apperrors.ErrUnknownSession
	}
	text := strings.TrimSpace(rawText)
	if text == "" {
		return apperrors.ErrEmptyText
	}
	text = d.moderator.Censor(text)

	msg, err := d.store.Append(identity, text)
	if err != nil {
		d.log.Error("append failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return err
	}

	d.registry.Broadcast(msg)
	return nil
}
