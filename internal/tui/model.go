// Package tui renders a widget controller in the terminal. Controller calls
// run inside tea.Cmd functions; views come back through Sink.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wolfman30/clinic-chat-widget/internal/phonemask"
	"github.com/wolfman30/clinic-chat-widget/internal/widget"
)

// Controller is the part of widget.Controller the terminal client drives.
type Controller interface {
	Dispatch(ctx context.Context, ev widget.Event) error
	View() widget.View
}

// ViewMsg carries a freshly rendered widget view.
type ViewMsg widget.View

// NavigateMsg asks the client to follow a link or call target.
type NavigateMsg string

type dispatchDoneMsg struct {
	kind widget.ControlKind
	err  error
}

// Sink forwards controller effects into a running program.
type Sink struct {
	mu sync.RWMutex
	p  *tea.Program
}

// Attach binds the sink to p. Effects emitted before Attach are dropped; the
// model reads the current view on start.
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = p
}

func (s *Sink) Render(v widget.View) {
	s.send(ViewMsg(v))
}

func (s *Sink) Navigate(href string) {
	s.send(NavigateMsg(href))
}

func (s *Sink) send(msg tea.Msg) {
	s.mu.RLock()
	p := s.p
	s.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

type focus int

const (
	focusChat focus = iota
	focusPhone
)

// Model is the bubbletea model of the terminal widget.
type Model struct {
	ctrl  Controller
	ctx   context.Context
	title string

	view    widget.View
	offsets map[string]int

	input      textinput.Model
	phone      textinput.Model
	phoneTurn  string
	focus      focus
	transcript viewport.Model
	spinner    spinner.Model

	width  int
	height int
	status string
	failed bool
}

// NewModel builds a model for ctrl. The widget is opened when the program starts.
func NewModel(ctx context.Context, ctrl Controller, title string) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.Placeholder = "Напишите сообщение…"
	input.CharLimit = 2000
	input.Focus()

	phone := textinput.New()
	phone.Prompt = "☎ "
	phone.Placeholder = phonemask.Placeholder
	phone.CharLimit = len(phonemask.Placeholder) + 4

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("135"))

	if ctx == nil {
		ctx = context.Background()
	}
	return Model{
		ctrl:       ctrl,
		ctx:        ctx,
		title:      title,
		view:       ctrl.View(),
		offsets:    map[string]int{},
		input:      input,
		phone:      phone,
		transcript: viewport.New(80, 20),
		spinner:    sp,
		status:     "Ctrl+O свернуть · Tab телефон · Ctrl+B кнопка · Alt+1…9 варианты · Esc выход",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.dispatch(widget.Event{Kind: widget.ControlOpen}),
	)
}

func (m Model) dispatch(ev widget.Event) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return dispatchDoneMsg{kind: ev.Kind, err: ctrl.Dispatch(ctx, ev)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderTranscript()

	case ViewMsg:
		m.applyView(widget.View(msg))

	case NavigateMsg:
		m.status = "Открыть: " + string(msg)
		m.failed = false

	case dispatchDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.kind, msg.err)
			m.failed = true
		} else if msg.kind == widget.ControlSend || msg.kind == widget.ControlPhoneSubmit {
			m.failed = false
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.view.Composing {
			m.renderTranscript()
		}
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+o":
			kind := widget.ControlOpen
			if m.view.Open {
				kind = widget.ControlClose
			}
			return m, m.dispatch(widget.Event{Kind: kind})
		case "ctrl+b":
			if id := liveCTA(m.view); id != "" {
				return m, m.dispatch(widget.Event{Kind: widget.ControlCTA, TurnID: id})
			}
			return m, nil
		case "tab":
			m.toggleFocus()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		case "enter":
			return m, m.submit()
		default:
			if ev, ok := actionForKey(m.view, key); ok {
				return m, m.dispatch(ev)
			}
		}

		if m.focus == focusPhone {
			before := m.phone.Value()
			var cmd tea.Cmd
			m.phone, cmd = m.phone.Update(msg)
			cmds = append(cmds, cmd)
			if after := m.phone.Value(); after != before {
				raw := phoneEdit(before, after)
				cmds = append(cmds, m.dispatch(widget.Event{Kind: widget.ControlPhoneInput, TurnID: m.phoneTurn, Text: raw}))
			}
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	if m.focus == focusPhone && m.phoneTurn != "" {
		return m.dispatch(widget.Event{Kind: widget.ControlPhoneSubmit, TurnID: m.phoneTurn})
	}
	if !m.view.InputEnabled {
		return nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()
	return m.dispatch(widget.Event{Kind: widget.ControlSend, Text: text})
}

func (m *Model) toggleFocus() {
	if m.focus == focusChat && m.phoneTurn != "" {
		m.focus = focusPhone
		m.input.Blur()
		m.phone.Focus()
		return
	}
	m.focus = focusChat
	m.phone.Blur()
	m.input.Focus()
}

func (m *Model) applyView(v widget.View) {
	if v.Version < m.view.Version {
		return
	}
	m.view = v

	phoneTurn, phone := livePhone(v)
	if phone == nil {
		m.phoneTurn = ""
		if m.focus == focusPhone {
			m.toggleFocus()
		}
	} else {
		if phoneTurn != m.phoneTurn {
			m.phoneTurn = phoneTurn
			m.focus = focusChat
			m.toggleFocus()
		}
		m.phone.SetValue(phone.Value)
		m.phone.CursorEnd()
	}

	m.renderTranscript()
}

func (m *Model) resize() {
	m.transcript.Width = m.width
	// header, status, input and phone lines
	h := m.height - 5
	if h < 3 {
		h = 3
	}
	m.transcript.Height = h
}

func (m *Model) renderTranscript() {
	width := m.transcript.Width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	offsets := make(map[string]int, len(m.view.Turns))
	line := 0
	write := func(s string) {
		b.WriteString(s)
		b.WriteString("\n")
		line += lipgloss.Height(s)
	}

	for _, turn := range m.view.Turns {
		offsets[turn.ID] = line
		write(renderTurn(turn, width, m.spinner.View()))
	}
	m.offsets = offsets
	m.transcript.SetContent(b.String())

	if s := m.view.Scroll; s != nil {
		if s.Align == widget.AlignStart {
			m.transcript.SetYOffset(offsets[s.TurnID])
		} else {
			m.transcript.GotoBottom()
		}
	}
}

func renderTurn(turn widget.TurnView, width int, spin string) string {
	wrap := lipgloss.NewStyle().Width(width - 4)

	if turn.Kind == widget.KindComposing {
		return botLabelStyle.Render("Ассистент") + "\n" + contentStyle.Render(spin+" печатает…")
	}

	var parts []string
	if turn.Speaker == widget.SpeakerUser {
		parts = append(parts, userLabelStyle.Render("Вы"))
	} else {
		parts = append(parts, botLabelStyle.Render("Ассистент"))
	}

	body := wrap.Render(turn.Content)
	switch turn.Kind {
	case widget.KindNudge:
		parts = append(parts, nudgeStyle.Render(body))
	case widget.KindApology:
		parts = append(parts, apologyStyle.Render(body))
	default:
		parts = append(parts, contentStyle.Render(body))
	}

	if len(turn.Actions) > 0 {
		buttons := make([]string, 0, len(turn.Actions))
		for _, a := range turn.Actions {
			buttons = append(buttons, actionStyle.Render(fmt.Sprintf("%d %s", a.Index+1, a.Label)))
		}
		parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
	}
	if turn.CTA != nil {
		label := turn.CTA.Label
		if turn.CTA.Href != "" {
			label += " → " + turn.CTA.Href
		}
		parts = append(parts, ctaStyle.Render(label))
	}
	if turn.Phone != nil {
		state := "введите номер"
		if turn.Phone.SubmitEnabled {
			state = "Enter отправит номер"
		}
		parts = append(parts, metaStyle.Render("  ☎ "+state))
	}
	return strings.Join(parts, "\n")
}

func (m Model) View() string {
	var b strings.Builder

	state := "свернут"
	if m.view.Open {
		state = "открыт"
	}
	b.WriteString(headerStyle.Render(m.title))
	b.WriteString(metaStyle.Render(fmt.Sprintf(" %s · %s", state, m.view.SessionID)))
	b.WriteString("\n")

	if m.view.Open {
		b.WriteString(m.transcript.View())
		b.WriteString("\n")
		if m.phoneTurn != "" {
			b.WriteString(m.phone.View())
			b.WriteString("\n")
		}
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if m.failed {
		b.WriteString(errorStyle.Render(m.status))
	} else {
		b.WriteString(statusStyle.Render(m.status))
	}
	return b.String()
}

// liveCTA returns the turn carrying the call-to-action, if any.
func liveCTA(v widget.View) string {
	for i := len(v.Turns) - 1; i >= 0; i-- {
		if v.Turns[i].CTA != nil {
			return v.Turns[i].ID
		}
	}
	return ""
}

func livePhone(v widget.View) (string, *widget.PhoneView) {
	for i := len(v.Turns) - 1; i >= 0; i-- {
		if v.Turns[i].Phone != nil {
			return v.Turns[i].ID, v.Turns[i].Phone
		}
	}
	return "", nil
}

// actionForKey maps alt+N to the N-th button of the latest turn with actions.
func actionForKey(v widget.View, key string) (widget.Event, bool) {
	if len(key) != 5 || !strings.HasPrefix(key, "alt+") {
		return widget.Event{}, false
	}
	n := int(key[4] - '0')
	if n < 1 || n > 9 {
		return widget.Event{}, false
	}
	for i := len(v.Turns) - 1; i >= 0; i-- {
		turn := v.Turns[i]
		if len(turn.Actions) == 0 {
			continue
		}
		if n > len(turn.Actions) {
			return widget.Event{}, false
		}
		return widget.Event{Kind: widget.ControlAction, TurnID: turn.ID, Index: n - 1}, true
	}
	return widget.Event{}, false
}

// phoneEdit turns an edit of the masked value into the raw value to format.
// Deleting a mask character removes the digit in front of it instead.
func phoneEdit(before, after string) string {
	if len(after) >= len(before) {
		return after
	}
	prev := phonemask.Normalize(before)
	next := phonemask.Normalize(after)
	if next == prev && len(next) > 1 {
		return next[:len(next)-1]
	}
	return after
}
