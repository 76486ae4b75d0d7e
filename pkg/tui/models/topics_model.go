package models

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/go-go-golems/topicsync/pkg/tui"
	"github.com/go-go-golems/topicsync/pkg/tui/styles"
	"github.com/go-go-golems/topicsync/pkg/tui/widgets"
)

// TopicsModel is the tag list of the selection plus the topic input.
// It never mutates the selection itself; edits go out as actions and
// come back as SelectionMsg.
type TopicsModel struct {
	selection  []string
	visibility map[string]bool
	unselected []string

	cursor int
	width  int
	active bool

	adding   bool
	input    textinput.Model
	typed    string
	complete int
}

func NewTopicsModel() TopicsModel {
	input := textinput.New()
	input.Placeholder = "topic"
	input.Prompt = "+ "
	input.CharLimit = 100
	return TopicsModel{input: input, visibility: map[string]bool{}, complete: -1}
}

func (m TopicsModel) WithWidth(w int) TopicsModel {
	m.width = w
	return m
}

func (m TopicsModel) WithActive(active bool) TopicsModel {
	m.active = active
	return m
}

func (m TopicsModel) WithSelection(s syncctl.SelectionChanged) TopicsModel {
	m.selection = append([]string{}, s.Selection...)
	m.visibility = s.Visibility
	if m.visibility == nil {
		m.visibility = map[string]bool{}
	}
	m.unselected = append([]string{}, s.Unselected...)
	if m.cursor >= len(m.selection) {
		m.cursor = maxInt(0, len(m.selection)-1)
	}
	return m
}

// Adding reports whether the topic input has focus.
func (m TopicsModel) Adding() bool { return m.adding }

// Current is the topic under the cursor, or "".
func (m TopicsModel) Current() string {
	if m.cursor < 0 || m.cursor >= len(m.selection) {
		return ""
	}
	return m.selection[m.cursor]
}

func (m TopicsModel) Update(msg tea.Msg) (TopicsModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.adding {
		return m.updateInput(v)
	}

	switch v.String() {
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if m.cursor < len(m.selection)-1 {
			m.cursor++
		}
	case " ", "v":
		if t := m.Current(); t != "" {
			return m, request(syncctl.Action{Kind: syncctl.ActionSetVisible, Topic: t, Visible: !m.visibility[t]})
		}
	case "d", "x", "backspace":
		if t := m.Current(); t != "" {
			return m, request(syncctl.Action{Kind: syncctl.ActionRemove, Topic: t})
		}
	case "a", "+":
		m.adding = true
		m.complete = -1
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m TopicsModel) updateInput(v tea.KeyMsg) (TopicsModel, tea.Cmd) {
	switch v.String() {
	case "esc":
		m.adding = false
		m.input.Blur()
		return m, nil
	case "enter":
		topic := strings.TrimSpace(m.input.Value())
		m.adding = false
		m.input.Blur()
		m.input.SetValue("")
		if topic == "" {
			return m, nil
		}
		return m, request(syncctl.Action{Kind: syncctl.ActionAdd, Topic: topic})
	case "tab":
		if m.complete < 0 {
			m.typed = strings.TrimSpace(m.input.Value())
		}
		if c := m.completions(m.typed); len(c) > 0 {
			m.complete = (m.complete + 1) % len(c)
			m.input.SetValue(c[m.complete])
			m.input.CursorEnd()
		}
		return m, nil
	}
	m.complete = -1
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(v)
	return m, cmd
}

// completions lists unselected topics starting with prefix.
func (m TopicsModel) completions(prefix string) []string {
	var out []string
	for _, t := range m.unselected {
		if strings.HasPrefix(t, prefix) {
			out = append(out, t)
		}
	}
	return out
}

func (m TopicsModel) View() string {
	theme := styles.DefaultTheme()

	var tags []string
	for i, t := range m.selection {
		visible := m.visibility[t]
		style := theme.TagHidden
		if visible {
			style = theme.TagVisible
		}
		label := styles.VisibilityIcon(visible) + " " + t
		if m.active && i == m.cursor {
			style = style.Inherit(theme.TagCursor)
		}
		tags = append(tags, style.Render(label))
	}
	line := theme.TitleMuted.Render("(no topics selected)")
	if len(tags) > 0 {
		line = lipgloss.JoinHorizontal(lipgloss.Top, joinSpaced(tags)...)
	}

	lines := []string{line}
	if m.adding {
		lines = append(lines, m.input.View())
	} else if len(m.unselected) > 0 {
		lines = append(lines, theme.TitleMuted.Render("available: "+strings.Join(m.unselected, ", ")))
	}

	return widgets.NewBox("Topics").
		WithTitleRight("[space] show/hide  [d] remove  [a] add").
		WithContent(lipgloss.JoinVertical(lipgloss.Left, lines...)).
		WithActive(m.active).
		WithSize(m.width, len(lines)+3).
		Render()
}

func joinSpaced(parts []string) []string {
	out := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}

func request(a syncctl.Action) tea.Cmd {
	return func() tea.Msg { return tui.ActionRequestMsg{Action: a} }
}
