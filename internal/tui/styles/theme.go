package styles

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#0EA5A4") // teal
	Secondary = lipgloss.Color("#60A5FA") // sky
	Success   = lipgloss.Color("#22C55E")
	Warning   = lipgloss.Color("#F59E0B")
	Error     = lipgloss.Color("#EF4444")
	Muted     = lipgloss.Color("#6B7280")
	Text      = lipgloss.Color("#E5E7EB")

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary)

	Label = lipgloss.NewStyle().
		Foreground(Muted).
		Width(16)

	Value = lipgloss.NewStyle().
		Foreground(Text)

	ActiveItem = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	InactiveItem = lipgloss.NewStyle().
			Foreground(Muted)

	StatusBar = lipgloss.NewStyle().
			Foreground(Muted).
			MarginTop(1)

	Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)
)

// Rating colors a star rating: green from 4.5, amber from 3.5, red below.
// Unrated places are muted.
func Rating(value float64, rated bool) lipgloss.Style {
	s := lipgloss.NewStyle()
	switch {
	case !rated:
		return s.Foreground(Muted)
	case value >= 4.5:
		return s.Foreground(Success).Bold(true)
	case value >= 3.5:
		return s.Foreground(Warning)
	default:
		return s.Foreground(Error)
	}
}

// Panel is a rounded detail box of the given outer width, highlighted when focused.
func Panel(focused bool, outerW, h int) lipgloss.Style {
	color := Muted
	if focused {
		color = Primary
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(outerW - 2).
		Height(h)
}
