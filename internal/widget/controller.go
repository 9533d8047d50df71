// Package widget drives one activation of the clinic chat widget: the
// open/closed state, the transcript, the idle nudge and every backend call.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-chat-widget/internal/inactivity"
	"github.com/wolfman30/clinic-chat-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-chat-widget/internal/phonemask"
	"github.com/wolfman30/clinic-chat-widget/internal/transport"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

const (
	// DefaultGreetingDelay is the pause between the first open and the greeting.
	DefaultGreetingDelay = 500 * time.Millisecond
	// DefaultBookingTrigger is sent when a booking CTA is clicked.
	DefaultBookingTrigger = "Записаться на консультацию"
)

// Transport sends one visitor message to the chat backend.
type Transport interface {
	Send(ctx context.Context, message, sessionID string) (transport.Reply, error)
}

// Sink receives the controller's visual effects.
type Sink interface {
	Render(View)
	Navigate(href string)
}

// SessionSaver persists the session id under a visitor key.
type SessionSaver interface {
	Save(ctx context.Context, key, sessionID string) error
}

// Options configures a Controller. Transport is required.
type Options struct {
	Transport Transport
	Sink      Sink
	Logger    *logging.Logger
	Metrics   *metrics.WidgetMetrics
	Clock     inactivity.Clock
	Now       func() time.Time

	IdleTimeout   time.Duration
	GreetingDelay time.Duration

	// SessionID is a previously persisted id; empty starts a new session.
	SessionID  string
	SessionKey string
	Sessions   SessionSaver

	Copy           Copy
	FallbackPhone  string
	BookingTrigger string
	StarterTopics  []string
}

// State is the observable summary of a controller.
type State struct {
	Open       bool   `json:"open"`
	SessionID  string `json:"session_id"`
	UserTurns  int    `json:"user_turns"`
	Composing  bool   `json:"composing"`
	InFlight   bool   `json:"in_flight"`
	NudgeArmed bool   `json:"nudge_armed"`
}

// Controller is safe for concurrent use. Backend calls run without the lock
// held and at most one is in flight at a time.
type Controller struct {
	transport Transport
	sink      Sink
	logger    *logging.Logger
	metrics   *metrics.WidgetMetrics
	clock     inactivity.Clock
	now       func() time.Time
	scheduler *inactivity.Scheduler

	greetingDelay  time.Duration
	sessions       SessionSaver
	sessionKey     string
	copy           Copy
	fallbackPhone  string
	bookingTrigger string
	starterTopics  []transport.ActionButton

	mu            sync.Mutex
	open          bool
	everOpened    bool
	greeted       bool
	disposed      bool
	inFlight      bool
	greetingTimer inactivity.Timer
	owedApology   bool
	sessionID     string
	savedSession  string
	transcript    *Transcript
	scroll        *Scroll
	version       uint64

	emitMu      sync.Mutex
	lastEmitted uint64
}

// New builds a closed controller.
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, errors.New("widget: transport is required")
	}
	c := &Controller{
		transport:      opts.Transport,
		sink:           opts.Sink,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		clock:          opts.Clock,
		now:            opts.Now,
		greetingDelay:  opts.GreetingDelay,
		sessions:       opts.Sessions,
		sessionKey:     opts.SessionKey,
		copy:           opts.Copy.withDefaults(),
		fallbackPhone:  opts.FallbackPhone,
		bookingTrigger: strings.TrimSpace(opts.BookingTrigger),
		sessionID:      strings.TrimSpace(opts.SessionID),
	}
	if c.sink == nil {
		c.sink = nopSink{}
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	if c.clock == nil {
		c.clock = inactivity.SystemClock{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.greetingDelay <= 0 {
		c.greetingDelay = DefaultGreetingDelay
	}
	if c.fallbackPhone == "" {
		c.fallbackPhone = DefaultFallbackPhone
	}
	if c.bookingTrigger == "" {
		c.bookingTrigger = DefaultBookingTrigger
	}
	for _, topic := range opts.StarterTopics {
		if topic = strings.TrimSpace(topic); topic != "" {
			c.starterTopics = append(c.starterTopics, transport.ActionButton{Label: topic, Payload: topic})
		}
	}

	c.savedSession = c.sessionID
	if c.sessionID == "" {
		c.sessionID = "session_" + uuid.NewString()
	}
	c.transcript = NewTranscript(c.now)
	c.scheduler = inactivity.New(opts.IdleTimeout, c.nudge,
		inactivity.WithClock(c.clock),
		inactivity.WithLogger(c.logger),
	)
	return c, nil
}

// Open shows the widget. The first open schedules the greeting; later opens
// re-arm the idle nudge.
func (c *Controller) Open() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = true
	if !c.everOpened {
		c.everOpened = true
		c.greetingTimer = c.clock.AfterFunc(c.greetingDelay, c.greet)
	} else {
		c.scheduler.Reset()
	}
	if c.owedApology {
		c.owedApology = false
		c.appendApologyLocked()
	}
	v := c.nextViewLocked()
	c.mu.Unlock()

	c.metrics.ObserveOpen(true)
	c.logger.Debug("widget opened", "session_id", v.SessionID)
	c.emit(v)
	return nil
}

// Close hides the widget and disarms the idle nudge.
func (c *Controller) Close() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	c.scheduler.Cancel()
	v := c.nextViewLocked()
	c.mu.Unlock()

	c.metrics.ObserveOpen(false)
	c.logger.Debug("widget closed", "session_id", v.SessionID)
	c.emit(v)
	return nil
}

// UserSend sends a typed message. Blank text is ignored. Backend failures are
// turned into an apology turn and do not surface as errors.
func (c *Controller) UserSend(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	c.mu.Lock()
	sessionID, v, err := c.beginLocked(text)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.metrics.ObserveUserTurn()
	c.emit(v)
	c.complete(ctx, text, sessionID)
	return nil
}

// PhoneInput applies the mask to the phone control on turnID.
func (c *Controller) PhoneInput(turnID, raw string) (phonemask.Result, error) {
	c.mu.Lock()
	turn := c.transcript.Find(turnID)
	if turn == nil || turn.Phone == nil {
		c.mu.Unlock()
		return phonemask.Result{}, fmt.Errorf("%w: no phone input on turn %q", ErrNotFound, turnID)
	}
	res := turn.Phone.Input(raw)
	v := c.nextViewLocked()
	c.mu.Unlock()

	c.emit(v)
	return res, nil
}

// PhoneSubmit sends the captured number. The formatted number becomes the
// user turn and the canonical +7XXXXXXXXXX form is sent to the backend.
func (c *Controller) PhoneSubmit(ctx context.Context, turnID string) error {
	c.mu.Lock()
	turn := c.transcript.Find(turnID)
	if turn == nil || turn.Phone == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no phone input on turn %q", ErrNotFound, turnID)
	}
	if !turn.Phone.IsComplete() {
		raw := turn.Phone.Raw()
		c.mu.Unlock()
		c.metrics.ObservePhoneSubmission(false)
		c.logger.Info("phone submit rejected", "turn_id", turnID, "digits", len(phonemask.Normalize(raw)))
		return &ValidationError{Field: "phone", Value: raw, Err: ErrIncompletePhone}
	}
	res := turn.Phone.Result()
	formatted, canonical := res.Formatted, res.E164
	sessionID, v, err := c.beginLocked(formatted)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.metrics.ObservePhoneSubmission(true)
	c.metrics.ObserveUserTurn()
	c.emit(v)
	c.complete(ctx, canonical, sessionID)
	return nil
}

// ClickAction behaves as if the visitor typed the button's payload.
func (c *Controller) ClickAction(ctx context.Context, turnID string, index int) error {
	c.mu.Lock()
	turn := c.transcript.Find(turnID)
	if turn == nil || index < 0 || index >= len(turn.Actions) {
		c.mu.Unlock()
		return fmt.Errorf("%w: no action %d on turn %q", ErrNotFound, index, turnID)
	}
	payload := turn.Actions[index].Payload
	c.mu.Unlock()

	return c.UserSend(ctx, payload)
}

// ClickCTA follows a link or call CTA, or sends the booking trigger.
func (c *Controller) ClickCTA(ctx context.Context, turnID string) error {
	c.mu.Lock()
	turn := c.transcript.Find(turnID)
	if turn == nil || turn.CTA == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no call to action on turn %q", ErrNotFound, turnID)
	}
	cta := *turn.CTA
	c.mu.Unlock()

	switch cta.Kind {
	case transport.CTALink, transport.CTACall:
		c.logger.Debug("cta navigation", "turn_id", turnID, "kind", string(cta.Kind))
		c.sink.Navigate(cta.Href())
		return nil
	default:
		return c.UserSend(ctx, c.bookingTrigger)
	}
}

// State reports the observable flags.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Open:       c.open,
		SessionID:  c.sessionID,
		UserTurns:  c.transcript.UserTurns(),
		Composing:  c.transcript.Composing(),
		InFlight:   c.inFlight,
		NudgeArmed: c.scheduler.Pending(),
	}
}

// View renders the current state without emitting it.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked()
}

// Shutdown stops every timer. The controller rejects input afterwards; a
// reply still in flight is discarded.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	wasOpen := c.open
	c.open = false
	if c.greetingTimer != nil {
		c.greetingTimer.Stop()
	}
	c.scheduler.Cancel()
	c.mu.Unlock()

	if wasOpen {
		c.metrics.ObserveOpen(false)
	}
}

// beginLocked appends the user turn and marks a request as in flight.
func (c *Controller) beginLocked(display string) (string, View, error) {
	if c.inFlight {
		return "", View{}, ErrBusy
	}
	if c.disposed || !c.open {
		return "", View{}, ErrClosed
	}
	_, scroll := c.transcript.Append(SpeakerUser, KindMessage, display)
	c.scroll = &scroll
	c.scheduler.Reset()
	c.transcript.ShowComposing()
	c.inFlight = true
	return c.sessionID, c.nextViewLocked(), nil
}

func (c *Controller) complete(ctx context.Context, message, sessionID string) {
	start := c.now()
	reply, err := c.transport.Send(ctx, message, sessionID)
	elapsed := c.now().Sub(start).Seconds()

	c.mu.Lock()
	c.inFlight = false
	c.transcript.HideComposing()
	visible := c.open && !c.disposed

	if err != nil {
		if visible {
			c.appendApologyLocked()
		} else if !c.disposed {
			c.owedApology = true
		}
		v := c.nextViewLocked()
		c.mu.Unlock()

		c.metrics.ObserveBackend("error", elapsed)
		c.logger.Error("chat backend call failed", "session_id", sessionID, "error", err)
		c.emit(v)
		return
	}

	if id := strings.TrimSpace(reply.SessionID); id != "" && id != c.sessionID {
		c.logger.Info("session id changed", "from", c.sessionID, "to", id)
		c.sessionID = id
	}
	if visible {
		c.applyReplyLocked(reply)
	} else {
		c.logger.Info("reply discarded, widget closed", "session_id", c.sessionID)
	}
	persist := ""
	if c.sessionID != c.savedSession {
		persist = c.sessionID
	}
	v := c.nextViewLocked()
	c.mu.Unlock()

	c.metrics.ObserveBackend("ok", elapsed)
	c.emit(v)
	if persist != "" {
		c.persistSession(ctx, persist)
	}
}

// applyReplyLocked appends the bot turn and its controls. A reply without
// text attaches nothing, so controls never land above the user's message.
func (c *Controller) applyReplyLocked(reply transport.Reply) {
	c.scheduler.Reset()
	text := reply.ResponseText
	if strings.TrimSpace(text) == "" {
		return
	}
	_, scroll := c.transcript.Append(SpeakerBot, KindReply, text)
	c.scroll = &scroll

	if reply.CTA != nil {
		c.transcript.AttachCTA(*reply.CTA)
	}
	c.transcript.AttachActions(reply.ActionButtons)

	wantsPhone := RequestsPhone(text)
	if reply.RequestPhone != nil {
		wantsPhone = *reply.RequestPhone
	}
	if wantsPhone {
		c.transcript.AttachPhoneCapture()
	}
}

func (c *Controller) appendApologyLocked() {
	_, scroll := c.transcript.Append(SpeakerBot, KindApology, c.copy.Apology(c.fallbackPhone))
	c.scroll = &scroll
}

func (c *Controller) persistSession(ctx context.Context, sessionID string) {
	if c.sessions == nil || c.sessionKey == "" {
		return
	}
	if err := c.sessions.Save(ctx, c.sessionKey, sessionID); err != nil {
		c.logger.Warn("failed to persist session id", "session_id", sessionID, "error", err)
		return
	}
	c.mu.Lock()
	c.savedSession = sessionID
	c.mu.Unlock()
}

func (c *Controller) greet() {
	c.mu.Lock()
	if c.disposed || c.greeted {
		c.mu.Unlock()
		return
	}
	c.greeted = true
	_, scroll := c.transcript.Append(SpeakerBot, KindGreeting, c.copy.Greeting)
	c.scroll = &scroll
	if c.transcript.UserTurns() == 0 {
		c.transcript.AttachActions(c.starterTopics)
	}
	if c.open {
		c.scheduler.Reset()
	}
	v := c.nextViewLocked()
	c.mu.Unlock()

	c.emit(v)
}

// nudge is the scheduler callback. It does not re-arm itself.
func (c *Controller) nudge() {
	c.mu.Lock()
	if c.disposed || !c.open {
		c.mu.Unlock()
		c.logger.Debug("nudge suppressed, widget closed")
		return
	}
	_, scroll := c.transcript.Append(SpeakerBot, KindNudge, c.copy.Nudge)
	c.scroll = &scroll
	c.transcript.AttachCTA(transport.CTA{Kind: transport.CTABook, Label: c.copy.NudgeCTALabel})
	v := c.nextViewLocked()
	c.mu.Unlock()

	c.metrics.ObserveNudge()
	c.emit(v)
}

func (c *Controller) nextViewLocked() View {
	c.version++
	return c.renderLocked()
}

func (c *Controller) renderLocked() View {
	return Render(RenderState{
		Version:   c.version,
		Open:      c.open,
		SessionID: c.sessionID,
		Turns:     c.transcript.Snapshot(),
		Composing: c.transcript.Composing(),
		Busy:      c.inFlight,
		Scroll:    c.scroll,
		UserTurns: c.transcript.UserTurns(),
	})
}

// emit forwards views in version order; a view overtaken by a newer one is dropped.
func (c *Controller) emit(v View) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if v.Version <= c.lastEmitted {
		return
	}
	c.lastEmitted = v.Version
	c.sink.Render(v)
}

type nopSink struct{}

func (nopSink) Render(View)     {}
func (nopSink) Navigate(string) {}
