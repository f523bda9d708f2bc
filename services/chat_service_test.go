package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"portal-chat/domain"
	apperrors "portal-chat/errors"
	"portal-chat/mocks"
)

func Test_Purge_Allowed_For_Admin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIMessageStore(ctrl)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	dispatcher.EXPECT().Purge(gomock.Any()).Return(42, nil)

	service := NewChatService(slog.Default(), store, dispatcher, []string{"admin@portal.io"})

	deleted, err := service.PurgeIfAuthorized(context.Background(), "admin@portal.io")
	req.NoError(err)
	req.Equal(42, deleted)
}

func Test_Purge_Denied_For_Regular_Identity(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIMessageStore(ctrl)
	// No Purge expectation: the dispatcher must never be reached
	dispatcher := mocks.NewMockIDispatcher(ctrl)

	service := NewChatService(slog.Default(), store, dispatcher, []string{"admin@portal.io"})

	_, err := service.PurgeIfAuthorized(context.Background(), "alice@portal.io")
	req.ErrorIs(err, apperrors.ErrNotAllowed)
}

func Test_Admin_List_Is_Trimmed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIMessageStore(ctrl)
	dispatcher := mocks.NewMockIDispatcher(ctrl)
	dispatcher.EXPECT().Purge(gomock.Any()).Return(0, nil)

	service := NewChatService(slog.Default(), store, dispatcher, []string{"  admin@portal.io ", "", "  "})

	_, err := service.PurgeIfAuthorized(context.Background(), "admin@portal.io")
	req.NoError(err)
}

func Test_Backfill_Truncates_At_The_Watermark(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backlog := []domain.Message{
		{Sequence: 1, Sender: "alice", Text: "one"},
		{Sequence: 2, Sender: "bob", Text: "two"},
		{Sequence: 3, Sender: "alice", Text: "three"},
	}
	store := mocks.NewMockIMessageStore(ctrl)
	store.EXPECT().Query(uint64(0)).Return(backlog, nil)
	dispatcher := mocks.NewMockIDispatcher(ctrl)

	service := NewChatService(slog.Default(), store, dispatcher, nil)

	snapshot, err := service.Backfill(2)
	req.NoError(err)
	req.Len(snapshot, 2)
	req.Equal(uint64(2), snapshot[len(snapshot)-1].Sequence)
}

func Test_Backfill_With_Zero_Watermark_Is_Empty(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backlog := []domain.Message{{Sequence: 1, Sender: "alice", Text: "one"}}
	store := mocks.NewMockIMessageStore(ctrl)
	store.EXPECT().Query(uint64(0)).Return(backlog, nil)
	dispatcher := mocks.NewMockIDispatcher(ctrl)

	service := NewChatService(slog.Default(), store, dispatcher, nil)

	snapshot, err := service.Backfill(0)
	req.NoError(err)
	req.Empty(snapshot)
}
