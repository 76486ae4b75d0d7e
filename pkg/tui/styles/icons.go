package styles

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconRunning = "▶"
	IconPending = "○"
	IconHidden  = "⊘"
	IconShown   = "●"
	IconBullet  = "•"
)

// ChannelIcon returns the icon for a channel state name.
func ChannelIcon(state string) string {
	switch state {
	case "open":
		return IconRunning
	case "reconnecting":
		return IconWarning
	case "closed":
		return IconError
	default:
		return IconPending
	}
}

// ResultIcon returns the icon for a subscription result; nil means none yet.
func ResultIcon(ok *bool) string {
	if ok == nil {
		return IconPending
	}
	if *ok {
		return IconSuccess
	}
	return IconError
}

// VisibilityIcon marks a tag as shown or hidden.
func VisibilityIcon(visible bool) string {
	if visible {
		return IconShown
	}
	return IconHidden
}
