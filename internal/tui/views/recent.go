package views

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/eyescan/internal/tui/styles"
)

// RecentEntry is a previously opened result file.
type RecentEntry struct {
	Path     string
	Count    int
	OpenedAt time.Time
}

func (e RecentEntry) missing() bool {
	_, err := os.Stat(e.Path)
	return os.IsNotExist(err)
}

// kind names the storage format of the entry.
func (e RecentEntry) kind() string {
	if strings.EqualFold(filepath.Ext(e.Path), ".db") {
		return "sqlite"
	}
	return "csv"
}

type RecentModel struct {
	entries []RecentEntry
	cursor  int
	notice  string
	now     func() time.Time
}

func NewRecentModel(entries []RecentEntry) RecentModel {
	return RecentModel{entries: entries, now: time.Now}
}

func (m RecentModel) Init() tea.Cmd {
	return nil
}

func (m RecentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
		m.notice = ""
	case "down", "j":
		m.cursor = min(m.cursor+1, max(len(m.entries)-1, 0))
		m.notice = ""
	case "enter":
		if m.cursor >= len(m.entries) {
			return m, nil
		}
		e := m.entries[m.cursor]
		if e.missing() {
			m.notice = fmt.Sprintf("%s no longer exists", filepath.Base(e.Path))
			return m, nil
		}
		return m, func() tea.Msg { return NavigateToResults{Path: e.Path, Count: e.Count} }
	case "esc", "q":
		return m, func() tea.Msg { return NavigateToHome{} }
	}
	return m, nil
}

func (m RecentModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Recent Results"))
	b.WriteString("\n\n")

	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	if len(m.entries) == 0 {
		b.WriteString(muted.Italic(true).Render("No runs opened yet. Start one from the home menu."))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return styles.Border.Render(b.String())
	}

	now := m.now()
	for i, e := range m.entries {
		marker, style := "  ", styles.InactiveItem
		if i == m.cursor {
			marker, style = "> ", styles.ActiveItem
		}

		name := style.Render(filepath.Base(e.Path))
		if e.missing() {
			name = lipgloss.NewStyle().Foreground(styles.Error).Strikethrough(true).
				Render(filepath.Base(e.Path))
		}

		parts := []string{e.kind(), timeAgo(e.OpenedAt, now)}
		if e.Count > 0 {
			parts = append(parts, fmt.Sprintf("%d hospitals", e.Count))
		}
		fmt.Fprintf(&b, "%s%s\n    %s\n    %s\n", marker, name,
			muted.Render(strings.Join(parts, " · ")),
			muted.Faint(true).Render(filepath.Dir(e.Path)))
	}

	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("↑↓ select • enter open • esc back"))

	return styles.Border.Render(b.String())
}

func timeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// NavigateToRecent signals navigation to the recent results view.
type NavigateToRecent struct{}
