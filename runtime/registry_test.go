package runtime

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"portal-chat/domain"
	"portal-chat/sink"
)

func Test_Broadcast_Reaches_Every_Registered_Sink(t *testing.T) {
	req := require.New(t)

	// Given
	registry := NewRegistry(slog.Default())
	aliceSink := sink.NewBufferedSink(4)
	bobSink := sink.NewBufferedSink(4)
	registry.Register(domain.NewConnection("session-alice", "alice"), aliceSink)
	registry.Register(domain.NewConnection("session-bob", "bob"), bobSink)

	// When
	msg := domain.Message{Sequence: 1, Sender: "alice", Text: "hello"}
	registry.Broadcast(msg)

	// Then
	req.Equal(msg, <-aliceSink.Events())
	req.Equal(msg, <-bobSink.Events())
}

func Test_Slow_Consumer_Is_Dropped_Without_Affecting_Others(t *testing.T) {
	req := require.New(t)

	// Given a sink with room for a single message
	registry := NewRegistry(slog.Default())
	slowSink := sink.NewBufferedSink(1)
	fastSink := sink.NewBufferedSink(4)
	slowConn := domain.NewConnection("session-slow", "slow")
	registry.Register(slowConn, slowSink)
	registry.Register(domain.NewConnection("session-fast", "fast"), fastSink)

	// When the slow consumer's buffer overflows
	registry.Broadcast(domain.Message{Sequence: 1, Text: "first"})
	registry.Broadcast(domain.Message{Sequence: 2, Text: "second"})

	// Then the slow session is gone and the fast one got everything
	req.Equal(1, registry.Count())
	req.Equal(domain.StateClosed, slowConn.State())
	_, ok := registry.IdentityOf("session-slow")
	req.False(ok)
	req.Equal(uint64(1), (<-fastSink.Events()).Sequence)
	req.Equal(uint64(2), (<-fastSink.Events()).Sequence)
}

func Test_Unregister_Is_Idempotent(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(slog.Default())
	conn := domain.NewConnection("session-1", "alice")
	registry.Register(conn, sink.NewBufferedSink(1))

	registry.Unregister("session-1")
	registry.Unregister("session-1")
	registry.Unregister("never-existed")

	req.Equal(0, registry.Count())
	req.Equal(domain.StateClosed, conn.State())
}

func Test_Register_Replaces_Duplicate_Session(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(slog.Default())
	firstConn := domain.NewConnection("session-1", "alice")
	firstSink := sink.NewBufferedSink(1)
	registry.Register(firstConn, firstSink)

	secondSink := sink.NewBufferedSink(1)
	registry.Register(domain.NewConnection("session-1", "alice"), secondSink)

	req.Equal(1, registry.Count())
	req.Equal(domain.StateClosed, firstConn.State())

	registry.Broadcast(domain.Message{Sequence: 1, Text: "hello"})
	req.Equal(uint64(1), (<-secondSink.Events()).Sequence)
}

func Test_IdentityOf_Known_And_Unknown_Sessions(t *testing.T) {
	req := require.New(t)

	registry := NewRegistry(slog.Default())
	registry.Register(domain.NewConnection("session-1", "alice"), sink.NewBufferedSink(1))

	identity, ok := registry.IdentityOf("session-1")
	req.True(ok)
	req.Equal("alice", identity)

	_, ok = registry.IdentityOf("session-2")
	req.False(ok)
}
