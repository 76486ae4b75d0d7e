package models

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/topicsync/pkg/snippets"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/go-go-golems/topicsync/pkg/tui"
	"github.com/go-go-golems/topicsync/pkg/tui/widgets"
)

type pane int

const (
	paneTopics pane = iota
	paneLog
)

// actionErrMsg reports a failed action publish.
type actionErrMsg struct{ err error }

// RootModel lays out the topics, status and message panes and routes
// actions to the controller through Publish.
type RootModel struct {
	Publish func(syncctl.Action) error

	width  int
	height int
	focus  pane

	topics TopicsModel
	status StatusModel
	log    EventLogModel
}

func NewRootModel(sessionID string, publish func(syncctl.Action) error) RootModel {
	return RootModel{
		Publish: publish,
		topics:  NewTopicsModel().WithActive(true),
		status:  NewStatusModel(sessionID),
		log:     NewEventLogModel(),
		width:   80,
		height:  24,
	}
}

func (m RootModel) Init() tea.Cmd { return nil }

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = v.Width, v.Height
		if m.width <= 0 {
			m.width = 80
		}
		if m.height <= 0 {
			m.height = 24
		}
		return m.relayout(), nil

	case tui.SelectionMsg:
		m.topics = m.topics.WithSelection(v.Selection)
		m.status = m.status.WithSelection(v.Selection)
		m.log = m.log.WithVisibility(v.Selection.Visibility)
		return m.relayout(), nil
	case tui.MessageAppendedMsg:
		m.log = m.log.Append(v.Message)
		return m, nil
	case tui.SubscriptionResultMsg:
		m.status = m.status.WithResult(v.Result)
		return m.relayout(), nil
	case tui.ChannelStateMsg:
		m.status = m.status.WithChannel(v.State)
		return m.relayout(), nil
	case tui.NoticeMsg:
		m.status = m.status.WithNotice(v.Notice)
		return m.relayout(), nil
	case tui.ActionRequestMsg:
		return m, m.publish(v.Action)
	case actionErrMsg:
		m.status = m.status.WithNotice(syncctl.Notice{Message: v.err.Error()})
		return m.relayout(), nil

	case tea.KeyMsg:
		return m.updateKey(v)
	}
	return m, nil
}

func (m RootModel) updateKey(v tea.KeyMsg) (tea.Model, tea.Cmd) {
	if v.String() == "ctrl+c" {
		return m, tea.Quit
	}
	// text inputs get every key
	if m.topics.Adding() || m.log.Searching() {
		return m.routeKey(v)
	}

	switch v.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		if m.focus == paneTopics {
			m.focus = paneLog
		} else {
			m.focus = paneTopics
		}
		m.topics = m.topics.WithActive(m.focus == paneTopics)
		m.log = m.log.WithActive(m.focus == paneLog)
		return m, nil
	case "s":
		return m, m.publish(syncctl.Action{Kind: syncctl.ActionSubmit})
	case "p":
		next := snippets.KindFetch
		if m.status.PreviewKind() == snippets.KindFetch {
			next = snippets.KindCurl
		}
		return m, m.publish(syncctl.Action{Kind: syncctl.ActionPreview, Preview: next})
	case "P":
		m.status = m.status.TogglePreview()
		return m.relayout(), nil
	}
	return m.routeKey(v)
}

func (m RootModel) routeKey(v tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == paneTopics {
		m.topics, cmd = m.topics.Update(v)
		return m.relayout(), cmd
	}
	m.log, cmd = m.log.Update(v)
	return m, cmd
}

// publish runs off the update loop; the bus may block until the
// controller takes the action.
func (m RootModel) publish(a syncctl.Action) tea.Cmd {
	if m.Publish == nil {
		return nil
	}
	publish := m.Publish
	return func() tea.Msg {
		if err := publish(a); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m RootModel) footer() widgets.Footer {
	return widgets.NewFooter([]widgets.Keybind{
		{Key: "tab", Label: "switch pane"},
		{Key: "s", Label: "resubscribe"},
		{Key: "p", Label: "curl/fetch"},
		{Key: "q", Label: "quit"},
	}).WithWidth(m.width)
}

func (m RootModel) relayout() RootModel {
	m.topics = m.topics.WithWidth(m.width)
	m.status = m.status.WithWidth(m.width)
	used := lipgloss.Height(m.topics.View()) + lipgloss.Height(m.status.View()) + lipgloss.Height(m.footer().Render())
	m.log = m.log.WithSize(m.width, maxInt(5, m.height-used))
	return m
}

func (m RootModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.topics.View(),
		m.status.View(),
		m.log.View(),
		m.footer().Render(),
	)
}
