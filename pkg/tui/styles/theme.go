package styles

import "github.com/charmbracelet/lipgloss"

// Theme holds the colors and styles shared by every pane.
type Theme struct {
	Primary lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color
	Text    lipgloss.Color

	Title        lipgloss.Style
	TitleMuted   lipgloss.Style
	Border       lipgloss.Style
	BorderActive lipgloss.Style

	KeybindKey   lipgloss.Style
	KeybindLabel lipgloss.Style

	StatusOpen    lipgloss.Style
	StatusPending lipgloss.Style
	StatusFailed  lipgloss.Style

	TagVisible lipgloss.Style
	TagHidden  lipgloss.Style
	TagCursor  lipgloss.Style

	MessageTopic   lipgloss.Style
	MessageDefault lipgloss.Style
}

func DefaultTheme() Theme {
	t := Theme{
		Primary: lipgloss.Color("39"),
		Success: lipgloss.Color("42"),
		Warning: lipgloss.Color("214"),
		Error:   lipgloss.Color("196"),
		Muted:   lipgloss.Color("241"),
		Text:    lipgloss.Color("252"),
	}

	t.Title = lipgloss.NewStyle().Bold(true).Foreground(t.Text)
	t.TitleMuted = lipgloss.NewStyle().Foreground(t.Muted)
	t.Border = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Muted)
	t.BorderActive = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary)

	t.KeybindKey = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	t.KeybindLabel = lipgloss.NewStyle().Foreground(t.Muted)

	t.StatusOpen = lipgloss.NewStyle().Foreground(t.Success)
	t.StatusPending = lipgloss.NewStyle().Foreground(t.Warning)
	t.StatusFailed = lipgloss.NewStyle().Foreground(t.Error)

	t.TagVisible = lipgloss.NewStyle().Foreground(t.Text).Background(lipgloss.Color("24")).Padding(0, 1)
	t.TagHidden = lipgloss.NewStyle().Foreground(t.Muted).Strikethrough(true).Padding(0, 1)
	t.TagCursor = lipgloss.NewStyle().Underline(true)

	t.MessageTopic = lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	t.MessageDefault = lipgloss.NewStyle().Italic(true).Foreground(t.Muted)
	return t
}

// ChannelStyle picks the status style for a channel state name.
func (t Theme) ChannelStyle(state string) lipgloss.Style {
	switch state {
	case "open":
		return t.StatusOpen
	case "closed":
		return t.StatusFailed
	default:
		return t.StatusPending
	}
}
