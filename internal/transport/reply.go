package transport

import (
	"bytes"
	"encoding/json"
	"strings"
)

// CTAKind identifies what a call-to-action does when clicked.
type CTAKind string

const (
	CTALink CTAKind = "link"
	CTACall CTAKind = "call"
	CTABook CTAKind = "book"
)

// DefaultCTALabel is used when the backend sends a CTA without text.
const DefaultCTALabel = "Записаться на консультацию"

// CTA is a normalized call-to-action descriptor.
type CTA struct {
	Kind   CTAKind `json:"kind"`
	Label  string  `json:"label"`
	Target string  `json:"target,omitempty"`
}

// Href is the navigation target of link and call CTAs.
func (c CTA) Href() string {
	switch c.Kind {
	case CTALink:
		return c.Target
	case CTACall:
		return "tel:" + c.Target
	default:
		return ""
	}
}

// ActionButton behaves as if the user typed Payload.
type ActionButton struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Reply is the normalized backend answer.
type Reply struct {
	SessionID     string
	ResponseText  string
	CTA           *CTA
	ActionButtons []ActionButton
	// RequestPhone is set only when the backend sent an explicit request_phone flag.
	RequestPhone *bool
}

type wireCTA struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Phone string `json:"phone"`
}

type wireActionButton struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// decodeJSONReply tolerates the reply shapes the backend has used over time.
// The text is taken from the first present, non-null field of response,
// answer.short, text and message.
func decodeJSONReply(body []byte) (Reply, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Reply{}, err
	}

	var reply Reply
	reply.SessionID, _ = stringField(fields["session_id"])

	if text, ok := stringField(fields["response"]); ok {
		reply.ResponseText = text
	} else if text, ok := answerShort(fields["answer"]); ok {
		reply.ResponseText = text
	} else if text, ok := stringField(fields["text"]); ok {
		reply.ResponseText = text
	} else if text, ok := stringField(fields["message"]); ok {
		reply.ResponseText = text
	}

	if raw, ok := fields["cta"]; ok && !isNull(raw) {
		var w wireCTA
		if err := json.Unmarshal(raw, &w); err == nil {
			cta := normalizeCTA(w)
			reply.CTA = &cta
		}
	}

	if raw, ok := fields["action_buttons"]; ok && !isNull(raw) {
		var ws []wireActionButton
		if err := json.Unmarshal(raw, &ws); err == nil {
			reply.ActionButtons = normalizeActionButtons(ws)
		}
	}

	if raw, ok := fields["request_phone"]; ok && !isNull(raw) {
		var flag bool
		if err := json.Unmarshal(raw, &flag); err == nil {
			reply.RequestPhone = &flag
		}
	}

	return reply, nil
}

// normalizeCTA falls back to a booking CTA when a link or call has no target,
// mirroring how the widget has always treated incomplete descriptors.
func normalizeCTA(w wireCTA) CTA {
	cta := CTA{Label: strings.TrimSpace(w.Text)}
	if cta.Label == "" {
		cta.Label = DefaultCTALabel
	}
	switch CTAKind(strings.ToLower(strings.TrimSpace(w.Type))) {
	case CTALink:
		if url := strings.TrimSpace(w.URL); url != "" {
			cta.Kind, cta.Target = CTALink, url
			return cta
		}
	case CTACall:
		if phone := strings.TrimSpace(w.Phone); phone != "" {
			cta.Kind, cta.Target = CTACall, phone
			return cta
		}
	}
	cta.Kind = CTABook
	return cta
}

func normalizeActionButtons(ws []wireActionButton) []ActionButton {
	out := make([]ActionButton, 0, len(ws))
	for _, w := range ws {
		label := strings.TrimSpace(w.Text)
		if label == "" {
			continue
		}
		payload := strings.TrimSpace(w.Action)
		if payload == "" {
			payload = label
		}
		out = append(out, ActionButton{Label: label, Payload: payload})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func answerShort(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || isNull(raw) {
		return "", false
	}
	var answer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", false
	}
	return stringField(answer["short"])
}

// stringField reports whether the field is present and non-null. A false or
// zero value counts as present but empty. Other non-string values are
// rendered as their compact JSON text.
func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	if isFalsy(raw) {
		return "", true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw), true
	}
	return buf.String(), true
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func isFalsy(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return !b
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == 0
	}
	return false
}
