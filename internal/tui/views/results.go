package views

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rendis/eyescan/internal/engine/storage"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/tui/components"
	"github.com/rendis/eyescan/internal/tui/styles"
)

type focusArea int

const (
	focusTable focusArea = iota
	focusFilter
	focusCard
	focusJSON
	focusMap
)

// ResultsModel displays hospital records with table + detail panels.
type ResultsModel struct {
	path      string
	hospitals []model.Hospital
	filtered  []model.Hospital
	table     table.Model
	filter    textinput.Model
	focus     focusArea
	selected  int
	width     int
	height    int
	err       error
	exportMsg string

	cardScrollY int
	cardLines   []string
	jsonScrollY int
	jsonScrollX int
	jsonLines   []string
	jsonRaw     string

	mapView components.MapView
}

type resultsLoadedMsg struct {
	Hospitals []model.Hospital
	Err       error
}

func NewResultsModel(path string) ResultsModel {
	filter := textinput.New()
	filter.Placeholder = "Type to filter..."
	filter.CharLimit = 50

	return ResultsModel{
		path:     path,
		filter:   filter,
		selected: -1,
		mapView:  components.NewMapView(40, 10),
	}
}

func (m ResultsModel) Init() tea.Cmd {
	path := m.path
	return func() tea.Msg {
		hospitals, err := LoadResults(path)
		return resultsLoadedMsg{Hospitals: hospitals, Err: err}
	}
}

// LoadResults reads records from a CSV output or a SQLite store.
func LoadResults(path string) ([]model.Hospital, error) {
	if strings.EqualFold(filepath.Ext(path), ".db") {
		store, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(context.Background())
	}
	return storage.ReadCSVFile(path)
}

func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusTable:
			switch key {
			case "esc", "q":
				return m, func() tea.Msg { return NavigateToHome{} }
			case "/", "tab":
				m.focus = focusFilter
				m.filter.Focus()
				return m, textinput.Blink
			case "1":
				m.focus = focusCard
				m.table.SetStyles(unfocusedTableStyles())
				return m, nil
			case "2":
				m.focus = focusJSON
				m.table.SetStyles(unfocusedTableStyles())
				return m, nil
			case "3":
				m.focus = focusMap
				m.table.SetStyles(unfocusedTableStyles())
				return m, nil
			case "e":
				m.exportCSV()
				return m, nil
			case "g":
				m.exportGeoJSON()
				return m, nil
			}

		case focusFilter:
			switch key {
			case "esc", "enter", "tab":
				m.focus = focusTable
				m.filter.Blur()
				return m, nil
			}

		case focusCard:
			maxScroll := max(len(m.cardLines)-m.panelHeight(), 0)
			switch key {
			case "esc":
				m.focus = focusTable
				m.table.SetStyles(focusedTableStyles())
				return m, nil
			case "up", "k":
				if m.cardScrollY > 0 {
					m.cardScrollY--
				}
				return m, nil
			case "down", "j":
				if m.cardScrollY < maxScroll {
					m.cardScrollY++
				}
				return m, nil
			}

		case focusJSON:
			maxScroll := max(len(m.jsonLines)-m.panelHeight(), 0)
			switch key {
			case "esc":
				m.focus = focusTable
				m.table.SetStyles(focusedTableStyles())
				return m, nil
			case "up", "k":
				if m.jsonScrollY > 0 {
					m.jsonScrollY--
				}
				return m, nil
			case "down", "j":
				if m.jsonScrollY < maxScroll {
					m.jsonScrollY++
				}
				return m, nil
			case "left", "h":
				m.jsonScrollX = max(m.jsonScrollX-4, 0)
				return m, nil
			case "right", "l":
				m.jsonScrollX += 4
				return m, nil
			case "c":
				m.copyToClipboard()
				return m, nil
			}

		case focusMap:
			switch key {
			case "esc":
				m.focus = focusTable
				m.table.SetStyles(focusedTableStyles())
				return m, nil
			case "+", "=":
				m.mapView.ZoomIn()
			case "-":
				m.mapView.ZoomOut()
			case "0":
				m.mapView.ZoomReset()
			case "up", "k":
				m.mapView.Pan(1, 0)
			case "down", "j":
				m.mapView.Pan(-1, 0)
			case "left", "h":
				m.mapView.Pan(0, -1)
			case "right", "l":
				m.mapView.Pan(0, 1)
			}
			return m, nil
		}

	case resultsLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.hospitals = msg.Hospitals
		m.filtered = msg.Hospitals
		m.buildTable(m.filtered)
		m.mapView.SetPoints(hospitalPoints(m.filtered))
		m.updateLayout()
		if len(m.filtered) > 0 {
			m.selected = 0
			m.cacheDetailContent()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTable:
		m.table, cmd = m.table.Update(msg)
		cursor := m.table.Cursor()
		if cursor != m.selected && cursor < len(m.filtered) {
			m.selected = cursor
			m.cardScrollY = 0
			m.jsonScrollY = 0
			m.jsonScrollX = 0
			m.mapView.SetSelected(cursor)
			m.cacheDetailContent()
		}
	case focusFilter:
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
	}

	return m, cmd
}

// hospitalJSON exposes the rating, which the record type keeps out of JSON.
type hospitalJSON struct {
	model.Hospital
	Rating *float64 `json:"rating"`
}

func (m *ResultsModel) cacheDetailContent() {
	if m.selected < 0 || m.selected >= len(m.filtered) {
		m.cardLines = nil
		m.jsonLines = nil
		m.jsonRaw = ""
		return
	}

	h := m.filtered[m.selected]
	m.cardLines = CardLines(h)

	view := hospitalJSON{Hospital: h}
	if h.Rating.Valid {
		v := h.Rating.Value
		view.Rating = &v
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		m.jsonLines = []string{"JSON error"}
		m.jsonRaw = ""
		return
	}
	m.jsonRaw = string(data)
	m.jsonLines = strings.Split(m.jsonRaw, "\n")
}

// CardLines renders a record as plain detail lines, name first.
func CardLines(h model.Hospital) []string {
	lines := []string{h.Name}
	lines = append(lines, fmt.Sprintf("%s (%d reviews)", h.Rating, h.ReviewCount))
	lines = append(lines, "")

	addRow := func(label, value string) {
		if value != "" && value != model.NotAvailable {
			lines = append(lines, fmt.Sprintf("%-10s %s", label, value))
		}
	}

	addRow("Address:", h.Address)
	addRow("Phone:", h.Phone)
	addRow("Website:", h.Website)
	if h.OpenNow != nil {
		open := "closed"
		if *h.OpenNow {
			open = "open"
		}
		addRow("Now:", open)
	}
	addRow("Coords:", fmt.Sprintf("%.6f, %.6f", h.Lat, h.Lng))
	addRow("PlaceID:", h.PlaceID)

	lines = append(lines, "")
	found := string(h.Provenance.Strategy)
	if h.Provenance.Zone > 0 {
		found += fmt.Sprintf(" zone %d", h.Provenance.Zone)
	}
	if h.Provenance.Keyword != "" {
		found += fmt.Sprintf(" %q", h.Provenance.Keyword)
	}
	addRow("Found by:", found)
	if h.Sightings > 1 {
		addRow("Seen:", fmt.Sprintf("%d times", h.Sightings))
	}
	return lines
}

func (m *ResultsModel) buildTable(hospitals []model.Hospital) {
	nameW := 34
	reviewsW := 8
	ratingW := 6
	methodW := 12
	phoneW := 16
	if m.width > 100 {
		extra := m.width - 100
		nameW += extra * 6 / 10
		phoneW += extra * 2 / 10
	}

	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "Reviews", Width: reviewsW},
		{Title: "Rating", Width: ratingW},
		{Title: "Found by", Width: methodW},
		{Title: "Phone", Width: phoneW},
	}

	rows := make([]table.Row, len(hospitals))
	for i, h := range hospitals {
		rows[i] = table.Row{
			truncate(h.Name, nameW),
			fmt.Sprintf("%d", h.ReviewCount),
			h.Rating.String(),
			truncate(string(h.Provenance.Strategy), methodW),
			truncate(h.Phone, phoneW),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height/2-4, 5)),
	)
	if m.focus == focusCard || m.focus == focusJSON || m.focus == focusMap {
		t.SetStyles(unfocusedTableStyles())
	} else {
		t.SetStyles(focusedTableStyles())
	}
	m.table = t
}

func focusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	return s
}

func unfocusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Muted)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(lipgloss.Color("#333333")).
		Bold(false)
	return s
}

func (m ResultsModel) panelHeight() int {
	return max(m.height/2-6, 6)
}

func (m *ResultsModel) updateLayout() {
	if m.width <= 0 {
		return
	}
	m.buildTable(m.filtered)
}

// SetZones marks the search zone centers on the map panel.
func (m *ResultsModel) SetZones(zones []model.Zone) {
	markers := make([]orb.Point, len(zones))
	for i, z := range zones {
		markers[i] = orb.Point{z.Lng, z.Lat}
	}
	m.mapView.SetMarkers(markers)
}

func hospitalPoints(hs []model.Hospital) []orb.Point {
	points := make([]orb.Point, len(hs))
	for i, h := range hs {
		points[i] = orb.Point{h.Lng, h.Lat}
	}
	return points
}

// normalize removes accents/diacritics and lowercases text for fuzzy matching.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}

// FilterHospitals keeps the records whose text fields contain every word of query,
// ignoring case and accents. An empty query keeps everything.
func FilterHospitals(hospitals []model.Hospital, query string) []model.Hospital {
	words := strings.Fields(normalize(query))
	if len(words) == 0 {
		return hospitals
	}

	var out []model.Hospital
	for _, h := range hospitals {
		haystack := normalize(strings.Join([]string{
			h.Name, h.Address, h.Phone, h.Website,
			h.Provenance.Keyword, string(h.Provenance.Strategy),
		}, " "))
		match := true
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, h)
		}
	}
	return out
}

func (m *ResultsModel) applyFilter() {
	m.filtered = FilterHospitals(m.hospitals, strings.TrimSpace(m.filter.Value()))
	m.buildTable(m.filtered)
	if len(m.filtered) > 0 {
		m.selected = 0
	} else {
		m.selected = -1
	}
	m.mapView.SetPoints(hospitalPoints(m.filtered))
	m.mapView.SetSelected(m.selected)
	m.cacheDetailContent()
}

func (m ResultsModel) View() string {
	if m.err != nil {
		return styles.ErrorText.Render(fmt.Sprintf("Error loading %s: %v", m.path, m.err))
	}

	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Results: %d hospitals", len(m.hospitals))))
	if len(m.filtered) != len(m.hospitals) {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf(" (showing %d)", len(m.filtered))))
	}
	b.WriteString("\n\n")

	filterStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	if m.focus == focusFilter {
		filterStyle = lipgloss.NewStyle().Foreground(styles.Primary)
	}
	b.WriteString(filterStyle.Render("Filter: "))
	b.WriteString(m.filter.View())
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	detailW := max(m.width-2, 40)
	panelH := m.panelHeight()
	cardOuterW := detailW * 2 / 5
	jsonOuterW := detailW - cardOuterW - 1

	cardBox := m.panel("[1] Details", m.focus == focusCard, cardOuterW, panelH,
		m.viewCardPanel(max(cardOuterW-4, 20), panelH))
	var jsonBox string
	if m.focus == focusMap {
		m.mapView.SetSize(max(jsonOuterW-4, 20), panelH)
		jsonBox = m.panel("[3] Map", true, jsonOuterW, panelH, m.mapView.View())
	} else {
		jsonBox = m.panel("[2] JSON", m.focus == focusJSON, jsonOuterW, panelH,
			m.viewJSONPanel(max(jsonOuterW-4, 20), panelH))
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cardBox, " ", jsonBox))
	b.WriteString("\n\n")

	if m.exportMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Render(m.exportMsg))
		b.WriteString("\n")
	}

	var statusText string
	switch m.focus {
	case focusTable:
		statusText = "↑↓ navigate • 1 details • 2 json • 3 map • / filter • e export csv • g export geojson • esc back"
	case focusFilter:
		statusText = "type to filter • esc back"
	case focusCard:
		statusText = "↑↓ scroll • esc back to table"
	case focusJSON:
		statusText = "↑↓ scroll • ←→ pan • c copy json • esc back to table"
	case focusMap:
		statusText = "↑↓←→ pan • +/- zoom • 0 reset • esc back to table"
	}
	b.WriteString(styles.StatusBar.Render(statusText))

	return b.String()
}

func (m ResultsModel) panel(label string, focused bool, outerW, h int, content string) string {
	color := styles.Muted
	if focused {
		color = styles.Primary
	}
	box := styles.Panel(focused, outerW, h).Render(content)
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(label) + "\n" + box
}

// window clamps a scroll offset and returns the visible range of n lines.
func window(scrollY, n, h int) (int, int) {
	scrollY = max(min(scrollY, n-h), 0)
	return scrollY, min(scrollY+h, n)
}

func (m ResultsModel) viewCardPanel(w, h int) string {
	if m.selected < 0 || m.selected >= len(m.filtered) || len(m.cardLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a hospital\nto view details")
	}

	lines := m.cardLines
	scrollY, end := window(m.cardScrollY, len(lines), h)
	visible := lines[scrollY:end]

	var sb strings.Builder
	label := lipgloss.NewStyle().Foreground(styles.Muted)
	valStyle := lipgloss.NewStyle().Foreground(styles.Text)

	for i, line := range visible {
		switch {
		case scrollY+i == 0:
			sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Text).
				Render(truncate(line, w)))
		case scrollY+i == 1:
			r := m.filtered[m.selected].Rating
			sb.WriteString(styles.Rating(r.Value, r.Valid).Render(truncate(line, w)))
		case strings.HasPrefix(line, "Website:"):
			val := strings.TrimSpace(strings.TrimPrefix(line, "Website:"))
			sb.WriteString(label.Render(fmt.Sprintf("%-10s ", "Website:")))
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).
				Render(truncate(val, w-11)))
		default:
			sb.WriteString(valStyle.Render(truncate(line, w)))
		}
		if i < len(visible)-1 {
			sb.WriteString("\n")
		}
	}

	if scrollY > 0 {
		sb.WriteString("\n")
		sb.WriteString(label.Render("  ▲ more above"))
	}
	if end < len(lines) {
		sb.WriteString("\n")
		sb.WriteString(label.Render("  ▼ more below"))
	}

	return sb.String()
}

func (m ResultsModel) viewJSONPanel(w, h int) string {
	if m.selected < 0 || m.selected >= len(m.filtered) || len(m.jsonLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a hospital\nto view JSON")
	}

	lines := m.jsonLines
	jsonStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Secondary)
	strStyle := lipgloss.NewStyle().Foreground(styles.Success)

	scrollY, end := window(m.jsonScrollY, len(lines), h)
	visible := lines[scrollY:end]

	var sb strings.Builder
	for i, line := range visible {
		display := line
		if m.jsonScrollX > 0 {
			if m.jsonScrollX < len(display) {
				display = display[m.jsonScrollX:]
			} else {
				display = ""
			}
		}
		display = truncate(display, w)

		trimmed := strings.TrimSpace(display)
		colonIdx := strings.Index(display, "\":")
		if strings.HasPrefix(trimmed, "\"") && colonIdx > 0 {
			sb.WriteString(keyStyle.Render(display[:colonIdx+1]))
			sb.WriteString(strStyle.Render(display[colonIdx+1:]))
		} else {
			sb.WriteString(jsonStyle.Render(display))
		}

		if i < len(visible)-1 {
			sb.WriteString("\n")
		}
	}

	if scrollY > 0 || end < len(lines) {
		sb.WriteString("\n")
		indicator := fmt.Sprintf("  [%d/%d]", scrollY+1, len(lines))
		if m.jsonScrollX > 0 {
			indicator += fmt.Sprintf(" ←%d", m.jsonScrollX)
		}
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(indicator))
	}

	return sb.String()
}

func (m *ResultsModel) copyToClipboard() {
	if m.jsonRaw == "" {
		return
	}
	if err := clipboard.WriteAll(m.jsonRaw); err != nil {
		m.exportMsg = fmt.Sprintf("Copy failed: %v", err)
		return
	}
	m.exportMsg = "JSON copied to clipboard"
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// exportBase is the source path without extension, marked as a filtered view.
func (m ResultsModel) exportBase() string {
	return strings.TrimSuffix(m.path, filepath.Ext(m.path)) + "_filtered"
}

func (m *ResultsModel) exportData() []model.Hospital {
	if len(m.filtered) == 0 {
		return m.hospitals
	}
	return m.filtered
}

func (m *ResultsModel) exportCSV() {
	path := m.exportBase() + ".csv"
	data := m.exportData()
	if err := storage.WriteCSVFile(path, data); err != nil {
		m.exportMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.exportMsg = fmt.Sprintf("Exported %d rows to %s", len(data), path)
}

func (m *ResultsModel) exportGeoJSON() {
	path := m.exportBase() + ".geojson"
	data := m.exportData()
	if err := storage.WriteGeoJSON(path, data); err != nil {
		m.exportMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.exportMsg = fmt.Sprintf("Exported %d features to %s", len(data), path)
}

// NavigateToResults opens the results view on a CSV or SQLite output.
type NavigateToResults struct {
	Path  string
	Count int
}
