package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/eyescan/internal/tui/styles"
)

// RunMode selects which strategies a run executes.
type RunMode int

const (
	ModeFull RunMode = iota
	ModeGrid
	ModeText
	ModeSample
)

func (m RunMode) String() string {
	switch m {
	case ModeGrid:
		return "Grid Search"
	case ModeText:
		return "Text Search"
	case ModeSample:
		return "Sample Data"
	default:
		return "Grid + Text Search"
	}
}

type menuItem struct {
	key   string
	label string
	desc  string
	cmd   func() tea.Msg
}

type HomeModel struct {
	items  []menuItem
	cursor int
	city   string
}

func NewHomeModel(city string) HomeModel {
	start := func(mode RunMode) func() tea.Msg {
		return func() tea.Msg { return StartRunMsg{Mode: mode} }
	}
	return HomeModel{
		city: city,
		items: []menuItem{
			{key: "f", label: "Full Search", desc: "Grid and text search, combined", cmd: start(ModeFull)},
			{key: "g", label: "Grid Search", desc: "Nearby search over every zone", cmd: start(ModeGrid)},
			{key: "t", label: "Text Search", desc: "City-wide text queries", cmd: start(ModeText)},
			{key: "s", label: "Sample Data", desc: "Bundled hospitals, no API calls", cmd: start(ModeSample)},
			{key: "o", label: "Open Results", desc: "Browse for a .csv or .db file", cmd: func() tea.Msg { return NavigateToLoad{} }},
			{key: "r", label: "Recent Results", desc: "Reopen a previous output", cmd: func() tea.Msg { return NavigateToRecent{} }},
			{key: "q", label: "Quit", desc: "Exit eyescan", cmd: tea.Quit},
		},
	}
}

func (m HomeModel) Init() tea.Cmd {
	return nil
}

func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter":
		return m, m.items[m.cursor].cmd
	default:
		for i, item := range m.items {
			if key.String() == item.key {
				m.cursor = i
				return m, item.cmd
			}
		}
	}
	return m, nil
}

func (m HomeModel) View() string {
	var b strings.Builder

	logo := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Render("  eyescan")

	tagline := lipgloss.NewStyle().
		Foreground(styles.Secondary).
		Italic(true).
		Render(fmt.Sprintf("  Eye hospitals in %s", m.city))

	b.WriteString(logo + "\n")
	b.WriteString(tagline + "\n\n")

	for i, item := range m.items {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		key := lipgloss.NewStyle().
			Foreground(styles.Secondary).
			Bold(true).
			Render(fmt.Sprintf("[%s]", item.key))

		desc := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Render(" - " + item.desc)

		b.WriteString(fmt.Sprintf("%s%s %s%s\n", cursor, key, style.Render(item.label), desc))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("↑↓ navigate • enter select • q quit"))

	return styles.Border.Render(b.String())
}

// StartRunMsg asks the app to start a discovery run.
type StartRunMsg struct {
	Mode RunMode
}

// NavigateToHome returns to the menu.
type NavigateToHome struct{}
