package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/topicsync/pkg/tui/styles"
)

// Box is a bordered pane with a title line.
type Box struct {
	Title      string
	TitleRight string
	Content    string
	Width      int
	Height     int
	Active     bool
	theme      styles.Theme
}

func NewBox(title string) Box {
	return Box{Title: title, theme: styles.DefaultTheme()}
}

func (b Box) WithTitleRight(s string) Box {
	b.TitleRight = s
	return b
}

func (b Box) WithContent(s string) Box {
	b.Content = s
	return b
}

// WithSize sets the outer size, borders included.
func (b Box) WithSize(w, h int) Box {
	b.Width, b.Height = w, h
	return b
}

func (b Box) WithActive(active bool) Box {
	b.Active = active
	return b
}

func (b Box) Render() string {
	style := b.theme.Border
	if b.Active {
		style = b.theme.BorderActive
	}
	innerW := b.Width - 2
	if innerW < 0 {
		innerW = 0
	}

	title := b.theme.Title.Render(b.Title)
	if b.TitleRight != "" {
		right := b.theme.TitleMuted.Render(b.TitleRight)
		gap := innerW - lipgloss.Width(title) - lipgloss.Width(right)
		if gap < 1 {
			gap = 1
		}
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, lipgloss.NewStyle().Width(gap).Render(""), right)
	}

	body := lipgloss.JoinVertical(lipgloss.Left, title, b.Content)
	if innerW > 0 {
		style = style.Width(innerW)
	}
	if b.Height > 2 {
		style = style.Height(b.Height - 2).MaxHeight(b.Height)
	}
	return style.Render(body)
}
