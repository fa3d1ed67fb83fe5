package views

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/eyescan/internal/tui/styles"
)

const pickerRows = 15

type FilePickerModel struct {
	dir    string
	files  []os.DirEntry
	cursor int
	err    error
}

func NewFilePickerModel(dir string) FilePickerModel {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	m := FilePickerModel{dir: dir}
	m.loadDir()
	return m
}

// IsResultFile reports whether path is an output the results view can open.
func IsResultFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".db":
		return true
	}
	return false
}

func (m *FilePickerModel) loadDir() {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.err = err
		return
	}

	m.err = nil
	m.files = nil
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() || IsResultFile(name) {
			m.files = append(m.files, e)
		}
	}
	m.cursor = 0
}

func (m FilePickerModel) Init() tea.Cmd {
	return nil
}

func (m FilePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		if m.cursor < len(m.files)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.files) {
			entry := m.files[m.cursor]
			fullPath := filepath.Join(m.dir, entry.Name())
			if entry.IsDir() {
				m.dir = fullPath
				m.loadDir()
				return m, nil
			}
			return m, func() tea.Msg {
				return NavigateToResults{Path: fullPath}
			}
		}
	case "backspace":
		parent := filepath.Dir(m.dir)
		if parent != m.dir {
			m.dir = parent
			m.loadDir()
		}
	case "esc":
		return m, func() tea.Msg { return NavigateToHome{} }
	}
	return m, nil
}

func (m FilePickerModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Open Results"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(m.dir))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		return styles.Border.Render(b.String())
	}

	if len(m.files) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("No .csv or .db files here"))
	}

	start := 0
	if m.cursor > pickerRows-3 {
		start = m.cursor - (pickerRows - 3)
	}
	end := min(start+pickerRows, len(m.files))

	for i := start; i < end; i++ {
		entry := m.files[i]
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		icon := "📄 "
		if entry.IsDir() {
			icon = "📁 "
		}

		b.WriteString(fmt.Sprintf("%s%s%s\n", cursor, icon, style.Render(entry.Name())))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter open • backspace parent dir • esc back"))

	return styles.Border.Render(b.String())
}

// NavigateToLoad opens the file picker.
type NavigateToLoad struct{}
