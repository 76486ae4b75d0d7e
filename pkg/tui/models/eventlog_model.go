package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/go-go-golems/topicsync/pkg/topics"
	"github.com/go-go-golems/topicsync/pkg/tui/styles"
	"github.com/go-go-golems/topicsync/pkg/tui/widgets"
)

// EventLogModel shows the message log filtered by topic visibility and an
// optional text filter. It keeps every entry; visibility only hides.
type EventLogModel struct {
	entries    []syncctl.Message
	visibility map[string]bool

	width  int
	height int
	active bool
	follow bool

	searching bool
	search    textinput.Model
	filter    string

	vp viewport.Model
}

func NewEventLogModel() EventLogModel {
	search := textinput.New()
	search.Placeholder = "filter…"
	search.Prompt = "/ "
	search.CharLimit = 200

	m := EventLogModel{search: search, follow: true, visibility: map[string]bool{}}
	m.vp = viewport.New(0, 0)
	return m
}

func (m EventLogModel) WithSize(width, height int) EventLogModel {
	m.width, m.height = width, height
	m = m.resizeViewport()
	return m
}

func (m EventLogModel) WithActive(active bool) EventLogModel {
	m.active = active
	return m
}

// WithVisibility replaces the visibility map and re-filters the log.
func (m EventLogModel) WithVisibility(v map[string]bool) EventLogModel {
	m.visibility = v
	m = m.refreshViewportContent(m.follow)
	return m
}

// Searching reports whether the filter input has focus.
func (m EventLogModel) Searching() bool { return m.searching }

func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searching {
		switch v.String() {
		case "esc":
			m.searching = false
			m.search.Blur()
			return m, nil
		case "enter":
			m.filter = strings.TrimSpace(m.search.Value())
			m.searching = false
			m.search.Blur()
			m = m.refreshViewportContent(true)
			return m, nil
		}

		var cmd tea.Cmd
		m.search, cmd = m.search.Update(v)
		return m, cmd
	}

	switch v.String() {
	case "/":
		m.searching = true
		m.search.SetValue(m.filter)
		m.search.CursorEnd()
		m.search.Focus()
		return m, textinput.Blink
	case "ctrl+l":
		m.filter = ""
		m.search.SetValue("")
		m = m.refreshViewportContent(true)
		return m, nil
	case "f":
		m.follow = !m.follow
		if m.follow {
			m.vp.GotoBottom()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(v)
	return m, cmd
}

func (m EventLogModel) Append(e syncctl.Message) EventLogModel {
	m.entries = append(m.entries, e)
	m = m.refreshViewportContent(m.follow)
	return m
}

// Shown returns the entries that pass both filters, oldest first.
func (m EventLogModel) Shown() []syncctl.Message {
	var out []syncctl.Message
	for _, e := range m.entries {
		if !e.Shown(m.visibility) {
			continue
		}
		if m.filter != "" && !strings.Contains(e.Data, m.filter) && !strings.Contains(e.Event, m.filter) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m EventLogModel) View() string {
	right := "[/] filter  [f] follow"
	if m.filter != "" {
		right = fmt.Sprintf("filter=%q  ", m.filter) + right
	}
	if !m.follow {
		right = "paused  " + right
	}

	content := m.vp.View()
	if len(m.entries) == 0 {
		content = styles.DefaultTheme().TitleMuted.Render("(no messages yet)")
	}
	if m.searching {
		content = m.search.View() + "\n" + content
	}

	return widgets.NewBox(fmt.Sprintf("Messages (%d/%d)", len(m.Shown()), len(m.entries))).
		WithTitleRight(right).
		WithContent(content).
		WithActive(m.active).
		WithSize(m.width, m.height).
		Render()
}

func (m EventLogModel) resizeViewport() EventLogModel {
	usableHeight := m.height - 4
	if usableHeight < 3 {
		usableHeight = 3
	}
	m.vp.Width = maxInt(0, m.width-2)
	m.vp.Height = usableHeight
	m = m.refreshViewportContent(false)
	return m
}

func (m EventLogModel) refreshViewportContent(gotoBottom bool) EventLogModel {
	shown := m.Shown()
	if len(shown) == 0 {
		m.vp.SetContent("")
		return m
	}
	theme := styles.DefaultTheme()
	lines := make([]string, 0, len(shown))
	for _, e := range shown {
		ts := e.At.Format("15:04:05")
		if e.Event == topics.Default {
			lines = append(lines, fmt.Sprintf("%s %s %s", ts, theme.MessageDefault.Render("(default)"), e.Data))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s", ts, theme.MessageTopic.Render("["+e.Event+"]")))
		lines = append(lines, e.Data)
	}
	m.vp.SetContent(strings.Join(lines, "\n") + "\n")
	if gotoBottom {
		m.vp.GotoBottom()
	}
	return m
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
