package webchat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-chat-widget/internal/inactivity/inactivitytest"
	"github.com/wolfman30/clinic-chat-widget/internal/session"
	"github.com/wolfman30/clinic-chat-widget/internal/transport"
	"github.com/wolfman30/clinic-chat-widget/internal/widget"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

// mockTransport replies with a fixed answer and records messages.
type mockTransport struct {
	mu       sync.Mutex
	messages []string
	reply    transport.Reply
}

func (m *mockTransport) Send(_ context.Context, message, _ string) (transport.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return m.reply, nil
}

type testServer struct {
	handler *Handler
	server  *httptest.Server
	store   *session.MemoryStore
}

func newTestServer(t *testing.T, tr *mockTransport) *testServer {
	t.Helper()
	store := session.NewMemoryStore(0)
	h, err := NewHandler(Config{
		Transport:     tr,
		Sessions:      store,
		Logger:        logging.Discard(),
		Clock:         inactivitytest.NewManualClock(),
		StarterTopics: []string{"Посмотреть цены"},
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/widget/ws", h.HandleWebSocket)
	r.Get("/widget/instances/{id}/state", h.HandleState)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{handler: h, server: srv, store: store}
}

func (s *testServer) dial(t *testing.T, visitor string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/widget/ws"
	if visitor != "" {
		url += "?visitor=" + visitor
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(OutboundMessage) bool) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg OutboundMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev widget.Event) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "event", Event: ev}))
}

func TestGenerateVisitorID(t *testing.T) {
	a := generateVisitorID()
	b := generateVisitorID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestNewHandlerRequiresTransport(t *testing.T) {
	_, err := NewHandler(Config{})
	assert.Error(t, err)
}

func TestConversationOverWebSocket(t *testing.T) {
	tr := &mockTransport{reply: transport.Reply{SessionID: "srv-1", ResponseText: "Добрый день!"}}
	ts := newTestServer(t, tr)
	conn := ts.dial(t, "visitor-1")

	first := readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "instance" })
	require.NotEmpty(t, first.InstanceID)
	assert.True(t, strings.HasPrefix(first.SessionID, "session_"))

	initial := readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "view" })
	assert.False(t, initial.View.Open)

	sendEvent(t, conn, widget.Event{Kind: widget.ControlOpen})
	readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "view" && m.View.Open })

	sendEvent(t, conn, widget.Event{Kind: widget.ControlSend, Text: "Здравствуйте"})
	final := readUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == "view" && !m.View.Composing && len(m.View.Turns) == 2
	})
	assert.Equal(t, "Здравствуйте", final.View.Turns[0].Content)
	assert.Equal(t, "Добрый день!", final.View.Turns[1].Content)
	assert.Equal(t, "srv-1", final.View.SessionID)

	resp, err := http.Get(ts.server.URL + "/widget/instances/" + first.InstanceID + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state widget.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.True(t, state.Open)
	assert.Equal(t, 1, state.UserTurns)
	assert.Equal(t, "srv-1", state.SessionID)

	require.Eventually(t, func() bool {
		id, err := ts.store.Load(context.Background(), "visitor-1")
		return err == nil && id == "srv-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRestoresStoredSession(t *testing.T) {
	tr := &mockTransport{reply: transport.Reply{ResponseText: "ok"}}
	ts := newTestServer(t, tr)
	require.NoError(t, ts.store.Save(context.Background(), "returning", "srv-9"))

	conn := ts.dial(t, "returning")
	msg := readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "instance" })
	assert.Equal(t, "srv-9", msg.SessionID)
}

func TestNavigateEffect(t *testing.T) {
	tr := &mockTransport{reply: transport.Reply{
		ResponseText: "Наш сайт",
		CTA:          &transport.CTA{Kind: transport.CTALink, Label: "Открыть", Target: "https://example.com"},
	}}
	ts := newTestServer(t, tr)
	conn := ts.dial(t, "")

	sendEvent(t, conn, widget.Event{Kind: widget.ControlOpen})
	sendEvent(t, conn, widget.Event{Kind: widget.ControlSend, Text: "сайт"})
	view := readUntil(t, conn, func(m OutboundMessage) bool {
		return m.Type == "view" && len(m.View.Turns) == 2 && m.View.Turns[1].CTA != nil
	})

	sendEvent(t, conn, widget.Event{Kind: widget.ControlCTA, TurnID: view.View.Turns[1].ID})
	nav := readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "navigate" })
	assert.Equal(t, "https://example.com", nav.Href)
}

func TestRejectedEventsReportErrors(t *testing.T) {
	ts := newTestServer(t, &mockTransport{})
	conn := ts.dial(t, "")

	sendEvent(t, conn, widget.Event{Kind: "swipe"})
	msg := readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "error" })
	assert.Contains(t, msg.Text, "unknown control")

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "pong" })
}

func TestDisconnectUnregistersInstance(t *testing.T) {
	ts := newTestServer(t, &mockTransport{})
	conn := ts.dial(t, "")
	readUntil(t, conn, func(m OutboundMessage) bool { return m.Type == "instance" })
	assert.Equal(t, 1, ts.handler.Active())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ts.handler.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStateUnknownInstance(t *testing.T) {
	ts := newTestServer(t, &mockTransport{})
	resp, err := http.Get(ts.server.URL + "/widget/instances/missing/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	h, err := NewHandler(Config{Transport: &mockTransport{}, AllowedOrigins: []string{"https://clinic.example"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/widget/ws", nil)
	req.Header.Set("Origin", "https://clinic.example")
	assert.True(t, h.checkOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))
}
