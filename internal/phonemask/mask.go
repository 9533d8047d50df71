// Package phonemask formats keystrokes into the +7 (DDD) DDD-DD-DD display form
// and exposes the canonical +7XXXXXXXXXX value once a number is complete.
package phonemask

import (
	"strings"
)

const (
	// CountryCode is the leading digit every normalized number starts with.
	CountryCode = '7'
	// MaxDigits is the country code plus a 10-digit subscriber number.
	MaxDigits = 11
	// Placeholder is shown in an empty phone input.
	Placeholder = "+7(___) ___-__-__"
)

// Result is the outcome of formatting one edit of the phone input.
type Result struct {
	Formatted string
	Digits    string
	// E164 is empty until exactly MaxDigits digits are present.
	E164 string
}

// Complete reports whether the result carries a canonical number.
func (r Result) Complete() bool {
	return r.E164 != ""
}

// Normalize strips everything but digits and applies the domestic prefix rules:
// a leading 8 becomes 7, a leading 9 gets a 7 in front, anything else not
// starting with 7 gets a 7 in front. The result is capped at MaxDigits.
func Normalize(raw string) string {
	d := digitsOnly(raw)
	if strings.HasPrefix(d, "8") {
		d = "7" + d[1:]
	}
	if strings.HasPrefix(d, "9") {
		d = "7" + d
	}
	if !strings.HasPrefix(d, "7") {
		d = "7" + d
	}
	if len(d) > MaxDigits {
		d = d[:MaxDigits]
	}
	return d
}

// Format re-renders raw input. Punctuation is only emitted once the group in
// front of it is full, so partial values such as "+7 (12" are valid states.
func Format(raw string) Result {
	d := Normalize(raw)

	var b strings.Builder
	b.WriteString("+7")
	if len(d) > 1 {
		b.WriteString(" (")
		b.WriteString(slice(d, 1, 4))
	}
	if len(d) >= 4 {
		b.WriteString(") ")
		b.WriteString(slice(d, 4, 7))
	}
	if len(d) >= 7 {
		b.WriteString("-")
		b.WriteString(slice(d, 7, 9))
	}
	if len(d) >= 9 {
		b.WriteString("-")
		b.WriteString(slice(d, 9, 11))
	}

	res := Result{Formatted: b.String(), Digits: d}
	if len(d) == MaxDigits {
		res.E164 = "+" + d
	}
	return res
}

// Mask tracks the phone input of a single capture control.
type Mask struct {
	raw    string
	result Result
}

// NewMask returns a mask initialised with an empty input.
func NewMask() *Mask {
	m := &Mask{}
	m.Apply("")
	return m
}

// Apply formats the current input value and remembers it.
func (m *Mask) Apply(raw string) Result {
	m.raw = raw
	m.result = Format(raw)
	return m.result
}

// Raw is the last value passed to Apply.
func (m *Mask) Raw() string { return m.raw }

// Result is the last formatting outcome.
func (m *Mask) Result() Result { return m.result }

// Valid reports whether the submit control may be enabled.
func (m *Mask) Valid() bool { return m.result.Complete() }

func digitsOnly(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func slice(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}
