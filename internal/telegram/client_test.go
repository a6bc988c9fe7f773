package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"callcenter/internal/api"
	"callcenter/internal/storage"
)

type call struct {
	Method string
	Body   map[string]any
}

// fakeBot records Bot API calls and answers each with a message id.
type fakeBot struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeBot) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		body := map[string]any{}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		}
		f.mu.Lock()
		f.calls = append(f.calls, call{Method: method, Body: body})
		f.mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":{"message_id":77}}`))
	}
}

func (f *fakeBot) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("token", "-100", false)
	c.APIBase = srv.URL
	return c
}

type memSeen struct {
	records map[string]storage.Seen
}

func (m *memSeen) Lookup(id string) (storage.Seen, bool) {
	r, ok := m.records[id]
	return r, ok
}

func (m *memSeen) RemoveSeen(id string) (bool, error) {
	_, ok := m.records[id]
	delete(m.records, id)
	return ok, nil
}

func TestNewClientUnconfigured(t *testing.T) {
	require.Nil(t, NewClient("", "chat", false))
	require.Nil(t, NewClient("token", "", false))

	var c *Client
	id, err := c.SendTicketMessage(context.Background(), api.Ticket{})
	require.NoError(t, err)
	require.Empty(t, id)
	require.NoError(t, c.SendCriticalAlert(context.Background(), "x", "y", 1))
	require.NoError(t, c.SendPhoto(context.Background(), nil, ""))
	require.NoError(t, c.EditMessageText(context.Background(), "1", "x"))
	c.HandleUpdates(context.Background(), nil, nil)
}

func TestSendTicketMessage(t *testing.T) {
	bot := &fakeBot{}
	c := newTestClient(t, bot.handler(t))

	id, err := c.SendTicketMessage(context.Background(), api.Ticket{
		TicketID:         "GRV12",
		UserName:         "Asha <Bora>",
		Mobile:           "9876543210",
		QueryDescription: "No certificate",
		EntryDateTime:    "04/08/2025 05:00:28 pm",
	})
	require.NoError(t, err)
	require.Equal(t, "77", id)

	require.Equal(t, []string{"sendMessage"}, bot.methods())
	body := bot.calls[0].Body
	require.Equal(t, "-100", body["chat_id"])
	text := body["text"].(string)
	require.Contains(t, text, "📋 Ticket : GRV12")
	require.Contains(t, text, "Asha &lt;Bora&gt;")
	require.Contains(t, text, "August 4, 2025")
	require.Contains(t, mustJSON(t, body["reply_markup"]), `"callback_data":"close:GRV12"`)
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	err := c.SendCriticalAlert(context.Background(), "Login Failure", "boom", 3)
	require.ErrorContains(t, err, "chat not found")
}

func TestSendPhoto(t *testing.T) {
	var caption, chatID string
	var photo []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/bottoken/sendPhoto"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		caption = r.FormValue("caption")
		chatID = r.FormValue("chat_id")
		f, _, err := r.FormFile("photo")
		require.NoError(t, err)
		photo, _ = io.ReadAll(f)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))

	require.NoError(t, c.SendPhoto(context.Background(), []byte("png-bytes"), "3 pending"))
	require.Equal(t, "3 pending", caption)
	require.Equal(t, "-100", chatID)
	require.Equal(t, "png-bytes", string(photo))
}

func TestCloseFlow(t *testing.T) {
	bot := &fakeBot{}
	c := newTestClient(t, bot.handler(t))
	seen := &memSeen{records: map[string]storage.Seen{
		"GRV12": {ID: 12, TicketID: "GRV12", UserName: "Asha", MessageID: "50"},
	}}

	var closedID int64
	var remarks string
	closeTicket := func(_ context.Context, id int64, text string) error {
		closedID, remarks = id, text
		return nil
	}

	ctx := context.Background()
	c.handleCallbackQuery(ctx, &CallbackQuery{ID: "q1", From: User{ID: 5, FirstName: "Op"}, Data: "close:GRV12"}, seen)
	require.Equal(t, []string{"sendMessage", "answerCallbackQuery"}, bot.methods())
	require.EqualValues(t, 50, bot.calls[0].Body["reply_to_message_id"])

	c.handleMessage(ctx, &IncomingMessage{From: &User{ID: 5}, Text: "Called back, resolved"}, seen, closeTicket)
	require.EqualValues(t, 12, closedID)
	require.Equal(t, "Called back, resolved", remarks)
	require.Equal(t, []string{"sendMessage", "answerCallbackQuery", "deleteMessage", "editMessageText"}, bot.methods())
	require.Contains(t, bot.calls[3].Body["text"], "CLOSED")
	require.Equal(t, "50", bot.calls[3].Body["message_id"])

	_, ok := seen.Lookup("GRV12")
	require.False(t, ok)
}

func TestCloseFlowToggleAndCancel(t *testing.T) {
	bot := &fakeBot{}
	c := newTestClient(t, bot.handler(t))
	seen := &memSeen{records: map[string]storage.Seen{"GRV1": {ID: 1, TicketID: "GRV1"}}}
	closeTicket := func(context.Context, int64, string) error {
		t.Fatal("ticket must not be closed")
		return nil
	}
	ctx := context.Background()
	q := &CallbackQuery{ID: "q", From: User{ID: 9}, Data: "close:GRV1"}

	c.handleCallbackQuery(ctx, q, seen)
	c.handleCallbackQuery(ctx, q, seen)
	c.handleMessage(ctx, &IncomingMessage{From: &User{ID: 9}, Text: "late"}, seen, closeTicket)

	c.handleCallbackQuery(ctx, q, seen)
	c.handleMessage(ctx, &IncomingMessage{From: &User{ID: 9}, Text: " Cancel "}, seen, closeTicket)

	_, ok := seen.Lookup("GRV1")
	require.True(t, ok)
}

func TestCloseFlowFailure(t *testing.T) {
	bot := &fakeBot{}
	c := newTestClient(t, bot.handler(t))
	seen := &memSeen{records: map[string]storage.Seen{"GRV1": {ID: 1, TicketID: "GRV1"}}}
	ctx := context.Background()

	c.handleCallbackQuery(ctx, &CallbackQuery{ID: "q", From: User{ID: 9}, Data: "close:GRV1"}, seen)
	c.handleMessage(ctx, &IncomingMessage{From: &User{ID: 9}, Text: "done"}, seen,
		func(context.Context, int64, string) error { return errors.New("Failed to add response. Please try again.") })

	_, ok := seen.Lookup("GRV1")
	require.True(t, ok)
	last := bot.calls[len(bot.calls)-1]
	require.Equal(t, "sendMessage", last.Method)
	require.Contains(t, last.Body["text"], "Failed to close ticket GRV1")
}

func TestInvalidCallback(t *testing.T) {
	bot := &fakeBot{}
	c := newTestClient(t, bot.handler(t))
	c.handleCallbackQuery(context.Background(), &CallbackQuery{ID: "q", Data: "resolve:1"}, &memSeen{})
	require.Equal(t, []string{"answerCallbackQuery"}, bot.methods())
	require.Equal(t, "Invalid action", bot.calls[0].Body["text"])
}

func TestNameFromText(t *testing.T) {
	require.Equal(t, "Asha", nameFromText("📋 Ticket : X\n\n👤 Asha\n📞 1", "Other"))
	require.Equal(t, "Other", nameFromText("", "Other"))
	require.Equal(t, "Unknown", nameFromText("", ""))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
