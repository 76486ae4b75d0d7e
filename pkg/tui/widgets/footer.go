package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/topicsync/pkg/tui/styles"
)

// Footer renders the keybindings bar and an optional status line.
type Footer struct {
	Keybinds []Keybind
	Status   string
	Width    int
	theme    styles.Theme
}

func NewFooter(keybinds []Keybind) Footer {
	return Footer{
		Keybinds: keybinds,
		theme:    styles.DefaultTheme(),
	}
}

func (f Footer) WithWidth(w int) Footer {
	f.Width = w
	return f
}

func (f Footer) WithStatus(s string) Footer {
	f.Status = s
	return f
}

func (f Footer) Render() string {
	theme := f.theme

	w := f.Width
	if w <= 0 {
		w = 80
	}
	separator := lipgloss.NewStyle().Foreground(theme.Muted).Render(strings.Repeat("━", w))

	keybindsLine := RenderKeybinds(f.Keybinds, theme)
	padding := (w - lipgloss.Width(keybindsLine)) / 2
	if padding < 0 {
		padding = 0
	}
	lines := []string{separator, lipgloss.NewStyle().PaddingLeft(padding).Render(keybindsLine)}
	if f.Status != "" {
		lines = append(lines, theme.TitleMuted.Render(f.Status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
