package widget

import (
	"context"
	"fmt"
)

// ControlKind names an interactive control of the widget.
type ControlKind string

const (
	ControlSend        ControlKind = "send"
	ControlAction      ControlKind = "action"
	ControlCTA         ControlKind = "cta"
	ControlPhoneInput  ControlKind = "phone_input"
	ControlPhoneSubmit ControlKind = "phone_submit"
	ControlOpen        ControlKind = "open"
	ControlClose       ControlKind = "close"
)

// Event is one interaction coming from a front-end.
type Event struct {
	Kind   ControlKind `json:"kind"`
	TurnID string      `json:"turn_id,omitempty"`
	Index  int         `json:"index,omitempty"`
	Text   string      `json:"text,omitempty"`
}

type handlerFunc func(ctx context.Context, c *Controller, ev Event) error

var handlers = map[ControlKind]handlerFunc{
	ControlSend: func(ctx context.Context, c *Controller, ev Event) error {
		return c.UserSend(ctx, ev.Text)
	},
	ControlAction: func(ctx context.Context, c *Controller, ev Event) error {
		return c.ClickAction(ctx, ev.TurnID, ev.Index)
	},
	ControlCTA: func(ctx context.Context, c *Controller, ev Event) error {
		return c.ClickCTA(ctx, ev.TurnID)
	},
	ControlPhoneInput: func(_ context.Context, c *Controller, ev Event) error {
		_, err := c.PhoneInput(ev.TurnID, ev.Text)
		return err
	},
	ControlPhoneSubmit: func(ctx context.Context, c *Controller, ev Event) error {
		return c.PhoneSubmit(ctx, ev.TurnID)
	},
	ControlOpen: func(_ context.Context, c *Controller, _ Event) error {
		return c.Open()
	},
	ControlClose: func(_ context.Context, c *Controller, _ Event) error {
		return c.Close()
	},
}

// Dispatch routes ev to the operation registered for its control kind.
func (c *Controller) Dispatch(ctx context.Context, ev Event) error {
	h, ok := handlers[ev.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, ev.Kind)
	}
	return h(ctx, c, ev)
}

// Controls lists the registered control kinds.
func Controls() []ControlKind {
	return []ControlKind{
		ControlSend, ControlAction, ControlCTA, ControlPhoneInput,
		ControlPhoneSubmit, ControlOpen, ControlClose,
	}
}
