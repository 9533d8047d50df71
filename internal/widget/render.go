package widget

import (
	"github.com/wolfman30/clinic-chat-widget/internal/phonemask"
	"github.com/wolfman30/clinic-chat-widget/internal/transport"
)

// ComposingTurnID addresses the transient placeholder in a rendered view.
const ComposingTurnID = "composing"

// KindComposing marks the placeholder turn; it never enters the transcript.
const KindComposing TurnKind = "composing"

// View is everything a front-end needs to paint the widget.
type View struct {
	Version      uint64     `json:"version"`
	Open         bool       `json:"open"`
	SessionID    string     `json:"session_id"`
	Turns        []TurnView `json:"turns"`
	Composing    bool       `json:"composing"`
	InputEnabled bool       `json:"input_enabled"`
	Scroll       *Scroll    `json:"scroll,omitempty"`
	UserTurns    int        `json:"user_turns"`
}

// TurnView is a rendered turn with its live controls.
type TurnView struct {
	ID      string       `json:"id"`
	Speaker Speaker      `json:"speaker"`
	Kind    TurnKind     `json:"kind"`
	Content string       `json:"content"`
	CTA     *CTAView     `json:"cta,omitempty"`
	Actions []ActionView `json:"actions,omitempty"`
	Phone   *PhoneView   `json:"phone,omitempty"`
}

// CTAView is a rendered call-to-action. Href is set for link and call kinds.
type CTAView struct {
	Kind  transport.CTAKind `json:"kind"`
	Label string            `json:"label"`
	Href  string            `json:"href,omitempty"`
}

// ActionView is one rendered action button; Index addresses it in events.
type ActionView struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// PhoneView is the rendered phone-entry control.
type PhoneView struct {
	Value         string `json:"value"`
	Placeholder   string `json:"placeholder"`
	SubmitEnabled bool   `json:"submit_enabled"`
}

// RenderState is the input of Render.
type RenderState struct {
	Version   uint64
	Open      bool
	SessionID string
	Turns     []Turn
	Composing bool
	Busy      bool
	Scroll    *Scroll
	UserTurns int
}

// Render is a pure function of the transcript state.
func Render(s RenderState) View {
	v := View{
		Version:      s.Version,
		Open:         s.Open,
		SessionID:    s.SessionID,
		Turns:        make([]TurnView, 0, len(s.Turns)+1),
		Composing:    s.Composing,
		InputEnabled: s.Open && !s.Busy && !s.Composing,
		UserTurns:    s.UserTurns,
	}
	if s.Scroll != nil {
		scroll := *s.Scroll
		v.Scroll = &scroll
	}

	for i := range s.Turns {
		v.Turns = append(v.Turns, renderTurn(&s.Turns[i]))
	}
	if s.Composing {
		v.Turns = append(v.Turns, TurnView{
			ID:      ComposingTurnID,
			Speaker: SpeakerBot,
			Kind:    KindComposing,
		})
	}
	return v
}

func renderTurn(t *Turn) TurnView {
	tv := TurnView{
		ID:      t.ID,
		Speaker: t.Speaker,
		Kind:    t.Kind,
		Content: t.Content,
	}
	if t.CTA != nil {
		tv.CTA = &CTAView{Kind: t.CTA.Kind, Label: t.CTA.Label, Href: t.CTA.Href()}
	}
	for i, a := range t.Actions {
		tv.Actions = append(tv.Actions, ActionView{Index: i, Label: a.Label, Payload: a.Payload})
	}
	if t.Phone != nil {
		value := t.Phone.Result().Formatted
		if t.Phone.Raw() == "" {
			value = ""
		}
		tv.Phone = &PhoneView{
			Value:         value,
			Placeholder:   phonemask.Placeholder,
			SubmitEnabled: t.Phone.IsComplete(),
		}
	}
	return tv
}

// CountControls counts live controls of each kind in a view.
func (v View) CountControls() (ctas, actions, phones int) {
	for _, t := range v.Turns {
		if t.CTA != nil {
			ctas++
		}
		actions += len(t.Actions)
		if t.Phone != nil {
			phones++
		}
	}
	return ctas, actions, phones
}
