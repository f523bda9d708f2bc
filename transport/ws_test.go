package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"portal-chat/auth"
	"portal-chat/moderation"
	"portal-chat/repositories"
	"portal-chat/runtime"
	"portal-chat/services"
)

const testSecret = "test-secret"

type testFixture struct {
	server        *httptest.Server
	authenticator *auth.Authenticator
	service       *services.ChatService
}

func newTestFixture(t *testing.T, admins []string) testFixture {
	t.Helper()
	req := require.New(t)
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := repositories.NewMessageRepository(db, log)
	req.NoError(err)

	moderator, err := moderation.NewModerator([]string{"badword"}, '*')
	req.NoError(err)

	registry := runtime.NewRegistry(log)
	dispatcher := runtime.NewDispatcher(log, store, registry, &moderator, 64)
	service := services.NewChatService(log, store, dispatcher, admins)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = dispatcher.Run(ctx) }()
	t.Cleanup(cancel)

	authenticator := auth.NewAuthenticator(testSecret)
	chatHandler := NewChatHandler(log, service, authenticator, 64)
	router := NewRouter(log, service, authenticator, chatHandler)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return testFixture{server: srv, authenticator: authenticator, service: service}
}

func (f testFixture) tokenFor(t *testing.T, identity string) string {
	t.Helper()
	token, err := f.authenticator.GenerateToken(identity, time.Hour)
	require.NoError(t, err)
	return token
}

func (f testFixture) dial(t *testing.T, identity string) *websocket.Conn {
	t.Helper()
	conn, err := f.dialErr(t, "token="+f.tokenFor(t, identity))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f testFixture) dialErr(t *testing.T, cookie string) (*websocket.Conn, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	cfg, err := websocket.NewConfig(wsURL, f.server.URL)
	require.NoError(t, err)
	if cookie != "" {
		cfg.Header = make(http.Header)
		cfg.Header.Set("Cookie", cookie)
	}
	return websocket.DialConfig(cfg)
}

func readTestFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var frame wsFrame
	require.NoError(t, json.NewDecoder(conn).Decode(&frame))
	return frame
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	payload, err := json.Marshal(sendMessagePayload{Text: text})
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(conn).Encode(wsFrame{Event: eventSendMessage, Payload: payload}))
}

func decodeMessages(t *testing.T, raw json.RawMessage) []messagePayload {
	t.Helper()
	var messages []messagePayload
	require.NoError(t, json.Unmarshal(raw, &messages))
	return messages
}

func decodeMessage(t *testing.T, raw json.RawMessage) messagePayload {
	t.Helper()
	var msg messagePayload
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func Test_Dial_Without_Token_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newTestFixture(t, nil)

	conn, err := f.dialErr(t, "")
	if conn != nil {
		_ = conn.Close()
	}
	req.Error(err)
	req.Contains(err.Error(), "bad status")
}

func Test_Join_Receives_The_Backlog_First(t *testing.T) {
	req := require.New(t)
	f := newTestFixture(t, nil)

	// Given two messages already in the log
	writer := f.dial(t, "alice@portal.io")
	first := readTestFrame(t, writer)
	req.Equal(eventPreviousMessages, first.Event)
	req.Empty(decodeMessages(t, first.Payload))

	sendText(t, writer, "message one")
	sendText(t, writer, "message two")
	req.Equal(eventReceiveMessage, readTestFrame(t, writer).Event)
	req.Equal(eventReceiveMessage, readTestFrame(t, writer).Event)

	// When a second client joins
	reader := f.dial(t, "bob@portal.io")
	snapshot := readTestFrame(t, reader)

	// Then the backlog arrives before anything else, in order
	req.Equal(eventPreviousMessages, snapshot.Event)
	messages := decodeMessages(t, snapshot.Payload)
	req.Len(messages, 2)
	req.Equal("message one", messages[0].Text)
	req.Equal(uint64(1), messages[0].Sequence)
	req.Equal("message two", messages[1].Text)
	req.Equal("alice@portal.io", messages[0].Sender)
}

func Test_Send_Broadcasts_To_Every_Session(t *testing.T) {
	req := require.New(t)
	f := newTestFixture(t, nil)

	alice := f.dial(t, "alice@portal.io")
	req.Equal(eventPreviousMessages, readTestFrame(t, alice).Event)
	bob := f.dial(t, "bob@portal.io")
	req.Equal(eventPreviousMessages, readTestFrame(t, bob).Event)

	sendText(t, alice, "hello bob")

	aliceFrame := readTestFrame(t, alice)
	req.Equal(eventReceiveMessage, aliceFrame.Event)
	bobFrame := readTestFrame(t, bob)
	req.Equal(eventReceiveMessage, bobFrame.Event)

	msg := decodeMessage(t, bobFrame.Payload)
	req.Equal("hello bob", msg.Text)
	req.Equal("alice@portal.io", msg.Sender)
	req.Equal(uint64(1), msg.Sequence)
	req.False(msg.Timestamp.IsZero())
}

func Test_Send_Empty_Text_Returns_Validation_Error(t *testing.T) {
	req := require.New(t)
	f := newTestFixture(t, nil)

	conn := f.dial(t, "alice@portal.io")
	req.Equal(eventPreviousMessages, readTestFrame(t, conn).Event)

	sendText(t, conn, "")

	frame := readTestFrame(t, conn)
	req.Equal(eventError, frame.Event)
	var payload errorPayload
	req.NoError(json.Unmarshal(frame.Payload, &payload))
	req.Equal("VALIDATION", payload.Code)
}

func Test_Sent_Text_Is_Censored(t *testing.T) {
	req := require.New(t)
	f := newTestFixture(t, nil)

	conn := f.dial(t, "alice@portal.io")
	req.Equal(eventPreviousMessages, readTestFrame(t, conn).Event)

	sendText(t, conn, "what a badword")

	frame := readTestFrame(t, conn)
	req.Equal(eventReceiveMessage, frame.Event)
	req.Equal("what a *******", decodeMessage(t, frame.Payload).Text)
}

func Test_Unknown_Event_Is_Ignored(t *testing.T) {
	req := require.New(t)
	f := newTestFixture(t, nil)

	conn := f.dial(t, "alice@portal.io")
	req.Equal(eventPreviousMessages, readTestFrame(t, conn).Event)

	req.NoError(json.NewEncoder(conn).Encode(wsFrame{Event: "somethingElse"}))

	// The session stays usable
	sendText(t, conn, "still alive")
	frame := readTestFrame(t, conn)
	req.Equal(eventReceiveMessage, frame.Event)
	req.Equal("still alive", decodeMessage(t, frame.Payload).Text)
}
