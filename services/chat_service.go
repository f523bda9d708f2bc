package services

import (
	"context"
	"log/slog"
	"strings"

	"portal-chat/contract"
	"portal-chat/domain"
	apperrors "portal-chat/errors"
)

// IChatService is the application surface shared by the websocket and REST
// transports.
type IChatService interface {
	Ingest(ctx context.Context, sessionID, rawText string) error
	History() ([]domain.Message, error)
	PurgeIfAuthorized(ctx context.Context, identity string) (int, error)
	Join(ctx context.Context, conn *domain.Connection, sink contract.MessageSink) (uint64, error)
	Leave(sessionID string)
	Backfill(watermark uint64) ([]domain.Message, error)
}

var _ IChatService = (*ChatService)(nil)

type ChatService struct {
	log        *slog.Logger
	store      contract.IMessageStore
	dispatcher contract.IDispatcher
	admins     map[string]struct{}
}

func NewChatService(
	log *slog.Logger,
	store contract.IMessageStore,
	dispatcher contract.IDispatcher,
	adminIdentities []string,
) *ChatService {
	admins := make(map[string]struct{}, len(adminIdentities))
	for _, identity := range adminIdentities {
		identity = strings.TrimSpace(identity)
		if identity != "" {
			admins[identity] = struct{}{}
		}
	}
	return &ChatService{
		log:        log,
		store:      store,
		dispatcher: dispatcher,
		admins:     admins,
	}
}

func (s *ChatService) Ingest(ctx context.Context, sessionID, rawText string) error {
	return s.dispatcher.Ingest(ctx, sessionID, rawText)
}

// History reads the full backlog in ascending order. It goes straight to the
// store: reads never ride the dispatch queue.
func (s *ChatService) History() ([]domain.Message, error) {
	return s.store.Query(0)
}

// PurgeIfAuthorized deletes all messages if the identity belongs to the admin
// set, otherwise nothing is deleted.
func (s *ChatService) PurgeIfAuthorized(ctx context.Context, identity string) (int, error) {
	if _, ok := s.admins[identity]; !ok {
		s.log.Warn("purge denied", slog.String("identity", identity))
		return 0, apperrors.ErrNotAllowed
	}
	deleted, err := s.dispatcher.Purge(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("purge executed",
		slog.String("identity", identity),
		slog.Int("deleted", deleted))
	return deleted, nil
}

func (s *ChatService) Join(ctx context.Context, conn *domain.Connection, sink contract.MessageSink) (uint64, error) {
	return s.dispatcher.Join(ctx, conn, sink)
}

func (s *ChatService) Leave(sessionID string) {
	s.dispatcher.Leave(sessionID)
}

// Backfill returns the snapshot a freshly joined session must receive:
// everything with sequence at or below the join watermark. Messages above
// the watermark arrive through the session's sink, so together the two
// streams cover the log exactly once.
func (s *ChatService) Backfill(watermark uint64) ([]domain.Message, error) {
	messages, err := s.store.Query(0)
	if err != nil {
		return nil, err
	}
	cut := len(messages)
	for i, msg := range messages {
		if msg.Sequence > watermark {
			cut = i
			break
		}
	}
	return messages[:cut], nil
}
