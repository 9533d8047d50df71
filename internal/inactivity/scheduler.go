// Package inactivity arms the idle nudge of a widget instance.
package inactivity

import (
	"sync"
	"time"

	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

// DefaultIdle is how long a conversation may stay quiet before the nudge.
const DefaultIdle = 30 * time.Second

// Scheduler keeps at most one pending fire. Reset re-arms it, Cancel disarms it.
type Scheduler struct {
	idle   time.Duration
	clock  Clock
	fire   func()
	logger *logging.Logger

	mu         sync.Mutex
	timer      Timer
	generation uint64
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger used for arm/fire tracing.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler that calls fire after idle without activity.
func New(idle time.Duration, fire func(), opts ...Option) *Scheduler {
	if idle <= 0 {
		idle = DefaultIdle
	}
	s := &Scheduler{
		idle:   idle,
		clock:  SystemClock{},
		fire:   fire,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reset cancels any pending fire and arms a new one.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.generation++
	gen := s.generation
	s.timer = s.clock.AfterFunc(s.idle, func() { s.expire(gen) })
	s.logger.Debug("inactivity: armed", "idle", s.idle, "generation", gen)
}

// Cancel disarms the scheduler without re-arming it.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.generation++
}

// Pending reports whether a fire is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expire runs on the timer goroutine. A callback whose generation was
// superseded by Reset or Cancel is dropped even if Stop lost the race.
func (s *Scheduler) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.logger.Debug("inactivity: fired", "generation", gen)
	if s.fire != nil {
		s.fire()
	}
}
