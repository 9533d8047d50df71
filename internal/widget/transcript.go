package widget

import (
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-chat-widget/internal/transport"
)

// PhoneKeywords mark a bot turn as asking for a phone number. Matching is a
// case-sensitive substring test.
var PhoneKeywords = []string{"номер телефона", "телефон"}

// RequestsPhone reports whether text asks the visitor for a phone number.
func RequestsPhone(text string) bool {
	for _, kw := range PhoneKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Align tells the front-end which edge of a turn must be visible.
type Align string

const (
	AlignStart Align = "start"
	AlignEnd   Align = "end"
)

// Scroll is the scroll directive produced by appending a turn.
type Scroll struct {
	TurnID string `json:"turn_id"`
	Align  Align  `json:"align"`
}

// Transcript is the renderer's state: the ordered turns plus the transient
// composing indicator. It is not safe for concurrent use; the Controller
// serialises access.
type Transcript struct {
	turns     []*Turn
	seq       int
	composing bool
	userTurns int
	now       func() time.Time
}

// NewTranscript returns an empty transcript.
func NewTranscript(now func() time.Time) *Transcript {
	if now == nil {
		now = time.Now
	}
	return &Transcript{now: now}
}

// Append adds a turn. A user turn supersedes every CTA, every phone capture
// and the starter topics of the greeting. User turns scroll to the end; bot
// turns scroll to their start.
func (t *Transcript) Append(speaker Speaker, kind TurnKind, content string) (*Turn, Scroll) {
	if speaker == SpeakerUser {
		for _, turn := range t.turns {
			turn.CTA = nil
			turn.Phone = nil
			if turn.Kind == KindGreeting {
				turn.Actions = nil
			}
		}
		t.userTurns++
	}

	t.seq++
	turn := &Turn{
		ID:        "t" + strconv.Itoa(t.seq),
		Speaker:   speaker,
		Kind:      kind,
		Content:   content,
		CreatedAt: t.now().UTC(),
	}
	t.turns = append(t.turns, turn)

	scroll := Scroll{TurnID: turn.ID, Align: AlignEnd}
	if speaker == SpeakerBot {
		scroll.Align = AlignStart
	}
	return turn, scroll
}

// ShowComposing displays the composing placeholder. Repeated calls are no-ops.
func (t *Transcript) ShowComposing() { t.composing = true }

// HideComposing removes the composing placeholder. Repeated calls are no-ops.
func (t *Transcript) HideComposing() { t.composing = false }

// Composing reports whether the placeholder is shown.
func (t *Transcript) Composing() bool { return t.composing }

// LastBot returns the most recently appended bot turn, or nil.
func (t *Transcript) LastBot() *Turn {
	for i := len(t.turns) - 1; i >= 0; i-- {
		if t.turns[i].Speaker == SpeakerBot {
			return t.turns[i]
		}
	}
	return nil
}

// Find returns the turn with id, or nil.
func (t *Transcript) Find(id string) *Turn {
	for _, turn := range t.turns {
		if turn.ID == id {
			return turn
		}
	}
	return nil
}

// AttachCTA puts cta on the latest bot turn and drops any other live CTA.
// It returns false when there is no bot turn yet.
func (t *Transcript) AttachCTA(cta transport.CTA) bool {
	target := t.LastBot()
	if target == nil {
		return false
	}
	for _, turn := range t.turns {
		turn.CTA = nil
	}
	target.CTA = &cta
	return true
}

// AttachActions puts the action buttons on the latest bot turn.
func (t *Transcript) AttachActions(buttons []transport.ActionButton) bool {
	target := t.LastBot()
	if target == nil || len(buttons) == 0 {
		return false
	}
	target.Actions = append([]transport.ActionButton(nil), buttons...)
	return true
}

// AttachPhoneCapture puts an empty phone input on the latest bot turn.
func (t *Transcript) AttachPhoneCapture() bool {
	target := t.LastBot()
	if target == nil {
		return false
	}
	target.Phone = newPhoneCapture("")
	return true
}

// Len is the number of turns, excluding the composing placeholder.
func (t *Transcript) Len() int { return len(t.turns) }

// UserTurns is the cumulative number of user-authored turns.
func (t *Transcript) UserTurns() int { return t.userTurns }

// Snapshot copies the turns so they can be rendered outside the lock.
func (t *Transcript) Snapshot() []Turn {
	out := make([]Turn, 0, len(t.turns))
	for _, turn := range t.turns {
		out = append(out, turn.clone())
	}
	return out
}
