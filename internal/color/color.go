package color

import "github.com/charmbracelet/lipgloss"

var (
	successColor = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	warningColor = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	failureColor = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
	infoColor    = lipgloss.AdaptiveColor{Light: "#0969DA", Dark: "#58A6FF"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	FailureStyle = lipgloss.NewStyle().Foreground(failureColor).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(infoColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	HeaderStyle  = lipgloss.NewStyle().Bold(true)
)

// StateStyle picks a style for a container or service state string.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "running", "healthy", "started":
		return SuccessStyle
	case "starting", "restarting", "created", "paused":
		return WarningStyle
	case "exited", "dead", "unhealthy", "removing":
		return FailureStyle
	default:
		return MutedStyle
	}
}
