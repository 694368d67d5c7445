package tui

import "github.com/charmbracelet/lipgloss"

// beacon amber theme
var (
	// Primary colors - signal amber palette
	Amber      = lipgloss.Color("#FFB347")
	DeepAmber  = lipgloss.Color("#FF9500")
	LightAmber = lipgloss.Color("#FFD9A0")
	DarkAmber  = lipgloss.Color("#C77400")
	GoldAccent = lipgloss.Color("#FFC84A")

	// Neutral colors
	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#B0B0B0")
	DarkGray  = lipgloss.Color("#404040")
	Black     = lipgloss.Color("#1A150E")

	// Status colors
	Success = lipgloss.Color("#00FF88")
	Warning = lipgloss.Color("#FFD700")
	Error   = lipgloss.Color("#FF6B6B")
	Info    = lipgloss.Color("#FFB347")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(DarkAmber).
			Bold(true).
			Padding(0, 2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightAmber).
			Bold(true)

	LogoStyle = lipgloss.NewStyle().
			Foreground(DeepAmber).
			Bold(true)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Amber).
			Padding(1, 2)

	ActiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(DeepAmber).
				Padding(1, 2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(LightAmber)

	ValueStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Info)

	DimStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(GoldAccent).
			Bold(true)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Background(DarkGray).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(LightGray)
)

// Logo returns the beacon ASCII art logo.
func Logo() string {
	logo := `
    ██████╗ ███████╗ █████╗  ██████╗ ██████╗ ███╗   ██╗
    ██╔══██╗██╔════╝██╔══██╗██╔════╝██╔═══██╗████╗  ██║
    ██████╔╝█████╗  ███████║██║     ██║   ██║██╔██╗ ██║
    ██╔══██╗██╔══╝  ██╔══██║██║     ██║   ██║██║╚██╗██║
    ██████╔╝███████╗██║  ██║╚██████╗╚██████╔╝██║ ╚████║
    ╚═════╝ ╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝`
	return LogoStyle.Render(logo)
}

// MiniLogo returns a smaller logo.
func MiniLogo() string {
	return LogoStyle.Render("▲ beacon")
}

// Tagline returns the project tagline.
func Tagline() string {
	return DimStyle.Render("App Diagnostics Telemetry Relay")
}

// Divider returns a horizontal divider.
func Divider(width int) string {
	line := ""
	for i := 0; i < width; i++ {
		line += "─"
	}
	return DimStyle.Render(line)
}

// Status glyphs
const (
	BulletPoint = "●"
	ArrowRight  = "→"
	CheckMark   = "✓"
	CrossMark   = "✗"
	WarningSign = "⚠"
	SignalOn    = "◉"
	SignalOff   = "○"
)
