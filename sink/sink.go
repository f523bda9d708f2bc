package sink

import (
	"sync"

	"portal-chat/contract"
	"portal-chat/domain"
	apperrors "portal-chat/errors"
)

var _ contract.MessageSink = (*BufferedSink)(nil)

// BufferedSink decouples the broadcast path from one consumer's socket. The
// channel capacity is the whole slow-consumer policy: when it is exceeded,
// Deliver fails and the registry drops the session rather than stalling every
// other delivery.
type BufferedSink struct {
	mu     sync.Mutex
	ch     chan domain.Message
	closed bool
}

func NewBufferedSink(size int) *BufferedSink {
	return &BufferedSink{ch: make(chan domain.Message, size)}
}

func (s *BufferedSink) Deliver(msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrSinkClosed
	}
	select {
	case s.ch <- msg:
		return nil
	default:
		return apperrors.ErrSlowConsumer
	}
}

// Events is the consumer side. The channel closes when the sink closes, so a
// writer loop can simply range over it.
func (s *BufferedSink) Events() <-chan domain.Message {
	return s.ch
}

// Close is idempotent.
func (s *BufferedSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
