//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"portal-chat/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// so workers don't have to carry a name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageSink is one connection's independently buffered delivery path.
// Deliver never blocks: when the buffer is exceeded it returns an error so
// the registry can disconnect that consumer instead of stalling the others.
type MessageSink interface {
	Deliver(msg domain.Message) error
	Close()
}

// IMessageStore is the durable append-only log with a total order.
type IMessageStore interface {
	Append(sender, text string) (domain.Message, error)
	Query(fromSequence uint64) ([]domain.Message, error)
	Purge() (int, error)
	LastSequence() uint64
}

// IRegistry tracks live transport sessions and fans stored messages out to
// them.
type IRegistry interface {
	Register(conn *domain.Connection, sink MessageSink)
	Unregister(sessionID string)
	IdentityOf(sessionID string) (string, bool)
	Broadcast(msg domain.Message)
}

// IDispatcher is the single-writer pipeline linking append and broadcast.
type IDispatcher interface {
	Ingest(ctx context.Context, sessionID, rawText string) error
	Join(ctx context.Context, conn *domain.Connection, sink MessageSink) (uint64, error)
	Leave(sessionID string)
	Purge(ctx context.Context) (int, error)
}
