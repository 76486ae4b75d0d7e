package widgets

import (
	"strings"

	"github.com/go-go-golems/topicsync/pkg/tui/styles"
)

// Keybind is one key and what it does.
type Keybind struct {
	Key   string
	Label string
}

// RenderKeybinds renders keybinds as "[key] label" pairs on one line.
func RenderKeybinds(keybinds []Keybind, theme styles.Theme) string {
	parts := make([]string, 0, len(keybinds))
	for _, kb := range keybinds {
		parts = append(parts, theme.KeybindKey.Render("["+kb.Key+"]")+" "+theme.KeybindLabel.Render(kb.Label))
	}
	return strings.Join(parts, "  ")
}
