package widget

import (
	"time"

	"github.com/wolfman30/clinic-chat-widget/internal/phonemask"
	"github.com/wolfman30/clinic-chat-widget/internal/transport"
)

// Speaker identifies who authored a turn.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// TurnKind records why a turn exists.
type TurnKind string

const (
	KindMessage  TurnKind = "message"
	KindReply    TurnKind = "reply"
	KindGreeting TurnKind = "greeting"
	KindNudge    TurnKind = "nudge"
	KindApology  TurnKind = "apology"
)

// PhoneCapture is the phone-entry control attached to a bot turn.
type PhoneCapture struct {
	mask *phonemask.Mask
}

func newPhoneCapture(raw string) *PhoneCapture {
	p := &PhoneCapture{mask: phonemask.NewMask()}
	p.mask.Apply(raw)
	return p
}

// Input formats the current input value.
func (p *PhoneCapture) Input(raw string) phonemask.Result {
	return p.mask.Apply(raw)
}

// Raw is the last unformatted input; empty until the visitor types.
func (p *PhoneCapture) Raw() string { return p.mask.Raw() }

// Result is the formatted and canonical form of the input.
func (p *PhoneCapture) Result() phonemask.Result { return p.mask.Result() }

// IsComplete reports whether the capture holds a canonical number.
func (p *PhoneCapture) IsComplete() bool {
	return p != nil && p.mask.Valid()
}

func (p *PhoneCapture) clone() *PhoneCapture {
	mask := *p.mask
	return &PhoneCapture{mask: &mask}
}

// Turn is one entry of the transcript. Content never changes after creation;
// only the attachments are removed once the conversation moves on.
type Turn struct {
	ID        string
	Speaker   Speaker
	Kind      TurnKind
	Content   string
	CreatedAt time.Time

	CTA     *transport.CTA
	Actions []transport.ActionButton
	Phone   *PhoneCapture
}

func (t *Turn) clone() Turn {
	out := *t
	if t.CTA != nil {
		cta := *t.CTA
		out.CTA = &cta
	}
	if t.Actions != nil {
		out.Actions = append([]transport.ActionButton(nil), t.Actions...)
	}
	if t.Phone != nil {
		out.Phone = t.Phone.clone()
	}
	return out
}
