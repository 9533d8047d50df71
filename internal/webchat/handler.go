package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/clinic-chat-widget/internal/inactivity"
	"github.com/wolfman30/clinic-chat-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-chat-widget/internal/session"
	"github.com/wolfman30/clinic-chat-widget/internal/widget"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
	outboxSize   = 64
)

// Config wires the per-connection controllers.
type Config struct {
	Transport widget.Transport
	Sessions  session.Store
	Metrics   *metrics.WidgetMetrics
	Logger    *logging.Logger
	Clock     inactivity.Clock

	IdleTimeout    time.Duration
	GreetingDelay  time.Duration
	FallbackPhone  string
	BookingTrigger string
	StarterTopics  []string
	AllowedOrigins []string
}

// Handler serves one widget controller per websocket connection.
type Handler struct {
	cfg      Config
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	instances map[string]*instance
}

type instance struct {
	id      string
	visitor string
	ctrl    *widget.Controller
	out     chan OutboundMessage
	done    chan struct{}
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type  string       `json:"type"` // "event", "ping"
	Event widget.Event `json:"event"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type       string       `json:"type"` // "instance", "view", "navigate", "error", "pong"
	InstanceID string       `json:"instance_id,omitempty"`
	SessionID  string       `json:"session_id,omitempty"`
	View       *widget.View `json:"view,omitempty"`
	Href       string       `json:"href,omitempty"`
	Text       string       `json:"text,omitempty"`
}

// NewHandler creates a widget websocket handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Transport == nil {
		return nil, errors.New("webchat: transport is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewMemoryStore(0)
	}
	h := &Handler{
		cfg:       cfg,
		logger:    cfg.Logger,
		instances: make(map[string]*instance),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h, nil
}

// generateVisitorID creates a random visitor identifier.
func generateVisitorID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket upgrades the request and runs a widget controller until the
// connection closes. The visitor query parameter selects the stored session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	visitor := strings.TrimSpace(r.URL.Query().Get("visitor"))
	if visitor == "" {
		visitor = generateVisitorID()
	}

	restored, err := h.cfg.Sessions.Load(r.Context(), visitor)
	if err != nil {
		h.logger.Warn("webchat: failed to restore session", "visitor", visitor, "error", err)
		restored = ""
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	inst := &instance{
		id:      uuid.NewString(),
		visitor: visitor,
		out:     make(chan OutboundMessage, outboxSize),
		done:    make(chan struct{}),
	}
	ctrl, err := widget.New(widget.Options{
		Transport:      h.cfg.Transport,
		Sink:           &connSink{inst: inst},
		Logger:         h.logger.With("instance_id", inst.id),
		Metrics:        h.cfg.Metrics,
		Clock:          h.cfg.Clock,
		IdleTimeout:    h.cfg.IdleTimeout,
		GreetingDelay:  h.cfg.GreetingDelay,
		SessionID:      restored,
		SessionKey:     visitor,
		Sessions:       h.cfg.Sessions,
		FallbackPhone:  h.cfg.FallbackPhone,
		BookingTrigger: h.cfg.BookingTrigger,
		StarterTopics:  h.cfg.StarterTopics,
	})
	if err != nil {
		h.logger.Error("webchat: failed to create controller", "error", err)
		_ = conn.WriteJSON(OutboundMessage{Type: "error", Text: "widget unavailable"})
		return
	}
	inst.ctrl = ctrl

	h.register(inst)
	ctx, cancel := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	defer func() {
		cancel()
		ctrl.Shutdown()
		h.unregister(inst)
		close(inst.done)
		<-writerDone
	}()

	state := ctrl.State()
	h.logger.Info("webchat: connection opened",
		"instance_id", inst.id,
		"visitor", visitor,
		"session_id", state.SessionID,
		"restored", restored != "",
	)

	inst.enqueue(OutboundMessage{Type: "instance", InstanceID: inst.id, SessionID: state.SessionID})
	view := ctrl.View()
	inst.enqueue(OutboundMessage{Type: "view", View: &view})

	go func() {
		defer close(writerDone)
		h.writeLoop(conn, inst)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("webchat: read error", "instance_id", inst.id, "error", err)
			}
			h.logger.Info("webchat: connection closed", "instance_id", inst.id)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "ping":
			inst.enqueue(OutboundMessage{Type: "pong"})
		case "event":
			h.handleEvent(ctx, inst, msg.Event)
		default:
			inst.enqueue(OutboundMessage{Type: "error", Text: "unknown message type"})
		}
	}
}

// Events that reach the chat backend run concurrently so open/close and
// phone edits are processed while a reply is pending.
var backgroundControls = map[widget.ControlKind]bool{
	widget.ControlSend:        true,
	widget.ControlAction:      true,
	widget.ControlCTA:         true,
	widget.ControlPhoneSubmit: true,
}

func (h *Handler) handleEvent(ctx context.Context, inst *instance, ev widget.Event) {
	run := func() {
		if err := inst.ctrl.Dispatch(ctx, ev); err != nil {
			h.logger.Info("webchat: event rejected",
				"instance_id", inst.id,
				"kind", string(ev.Kind),
				"turn_id", ev.TurnID,
				"error", err,
			)
			inst.enqueue(OutboundMessage{Type: "error", Text: err.Error()})
		}
	}
	if backgroundControls[ev.Kind] {
		go run()
		return
	}
	run()
}

func (h *Handler) writeLoop(conn *websocket.Conn, inst *instance) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-inst.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-inst.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("webchat: write failed", "instance_id", inst.id, "error", err)
				_ = conn.Close()
				<-inst.done
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.logger.Debug("webchat: ping failed", "instance_id", inst.id, "error", err)
				_ = conn.Close()
				<-inst.done
				return
			}
		}
	}
}

func (inst *instance) enqueue(msg OutboundMessage) {
	select {
	case inst.out <- msg:
	case <-inst.done:
	}
}

func (h *Handler) register(inst *instance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.instances[inst.id] = inst
}

func (h *Handler) unregister(inst *instance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.instances[inst.id] == inst {
		delete(h.instances, inst.id)
	}
}

// Active returns the number of connected widget instances.
func (h *Handler) Active() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.instances)
}

// HandleState reports the observable state of a connected instance.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mu.RLock()
	inst, ok := h.instances[id]
	h.mu.RUnlock()
	if !ok {
		http.Error(w, "instance not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(inst.ctrl.State())
}

// connSink forwards controller effects to the connection's writer.
type connSink struct {
	inst *instance
}

func (s *connSink) Render(v widget.View) {
	s.inst.enqueue(OutboundMessage{Type: "view", View: &v})
}

func (s *connSink) Navigate(href string) {
	s.inst.enqueue(OutboundMessage{Type: "navigate", Href: href})
}
