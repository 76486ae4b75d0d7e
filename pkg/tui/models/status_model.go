package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/topicsync/pkg/protocol"
	"github.com/go-go-golems/topicsync/pkg/snippets"
	"github.com/go-go-golems/topicsync/pkg/syncctl"
	"github.com/go-go-golems/topicsync/pkg/tui/styles"
	"github.com/go-go-golems/topicsync/pkg/tui/widgets"
)

// StatusModel shows the channel, the last subscription result, the share
// link and the snippet preview.
type StatusModel struct {
	width int

	sessionID   string
	channel     syncctl.ChannelState
	result      *protocol.SubscriptionResult
	shareURL    string
	previewKind snippets.Kind
	preview     string
	notice      string
	showPreview bool
}

func NewStatusModel(sessionID string) StatusModel {
	return StatusModel{
		sessionID:   sessionID,
		channel:     syncctl.ChannelState{State: "connecting"},
		previewKind: snippets.KindCurl,
		showPreview: true,
	}
}

func (m StatusModel) WithWidth(w int) StatusModel {
	m.width = w
	return m
}

func (m StatusModel) WithChannel(c syncctl.ChannelState) StatusModel {
	m.channel = c
	return m
}

func (m StatusModel) WithResult(r protocol.SubscriptionResult) StatusModel {
	m.result = &r
	return m
}

func (m StatusModel) WithSelection(s syncctl.SelectionChanged) StatusModel {
	m.shareURL = s.ShareURL
	m.previewKind = s.PreviewKind
	m.preview = s.Preview
	return m
}

func (m StatusModel) WithNotice(n syncctl.Notice) StatusModel {
	m.notice = n.Message
	return m
}

func (m StatusModel) TogglePreview() StatusModel {
	m.showPreview = !m.showPreview
	return m
}

// PreviewKind is the snippet kind currently rendered.
func (m StatusModel) PreviewKind() snippets.Kind { return m.previewKind }

func (m StatusModel) View() string {
	theme := styles.DefaultTheme()

	chStyle := theme.ChannelStyle(m.channel.State)
	channelLine := lipgloss.JoinHorizontal(lipgloss.Center,
		chStyle.Render(styles.ChannelIcon(m.channel.State)),
		" ",
		theme.Title.Render(m.channel.State),
		"  ",
		theme.TitleMuted.Render(fmt.Sprintf("gen %d  reconnects %d", m.channel.Generation, m.channel.Reconnects)),
	)
	lines := []string{
		theme.TitleMuted.Render("Session: " + m.sessionID),
		channelLine,
	}
	if m.channel.Error != "" {
		lines = append(lines, theme.StatusFailed.Render(m.channel.Error))
	}

	lines = append(lines, m.resultLine(theme))
	if m.shareURL != "" {
		lines = append(lines, theme.TitleMuted.Render("Share: ")+m.shareURL)
	}
	if m.notice != "" {
		lines = append(lines, theme.StatusPending.Render(styles.IconWarning+" "+m.notice))
	}

	sections := []string{
		widgets.NewBox("Status").
			WithContent(lipgloss.JoinVertical(lipgloss.Left, lines...)).
			WithSize(m.width, len(lines)+3).
			Render(),
	}

	if m.showPreview && m.preview != "" {
		preview := strings.TrimRight(m.preview, "\n")
		sections = append(sections, widgets.NewBox(fmt.Sprintf("Preview (%s)", m.previewKind)).
			WithTitleRight("[p] switch  [P] hide").
			WithContent(preview).
			WithSize(m.width, strings.Count(preview, "\n")+4).
			Render())
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m StatusModel) resultLine(theme styles.Theme) string {
	if m.result == nil {
		return theme.TitleMuted.Render(styles.ResultIcon(nil) + " not subscribed yet")
	}
	ok := m.result.Ok()
	icon := styles.ResultIcon(&ok)
	topics := strings.Join(m.result.Topics, ", ")
	if topics == "" {
		topics = "(none)"
	}
	if ok {
		text := "subscribed: " + topics
		if m.result.Result != "" {
			text += "  " + theme.TitleMuted.Render(m.result.Result)
		}
		return theme.StatusOpen.Render(icon) + " " + text
	}
	msg := m.result.Error.Message
	if m.result.Error.Code != 0 {
		msg = fmt.Sprintf("%d %s", m.result.Error.Code, msg)
	}
	return theme.StatusFailed.Render(icon + " subscribe failed: " + msg)
}
