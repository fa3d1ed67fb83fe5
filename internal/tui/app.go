package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/eyescan/internal/config"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/tui/views"
)

type viewID int

const (
	viewHome viewID = iota
	viewProgress
	viewResults
	viewFilePicker
	viewRecent
)

// Options configures runs started from the TUI.
type Options struct {
	City        string
	OutputDir   string
	ProfilePath string
	Concurrency int
}

// App is the root bubbletea model.
type App struct {
	currentView viewID
	width       int
	height      int
	cfg         views.RunConfig
	recentStore RecentStore
	zones       []model.Zone
	home        views.HomeModel
	progress    views.ProgressModel
	results     views.ResultsModel
	filePicker  views.FilePickerModel
	recent      views.RecentModel
}

func NewApp(opts Options, store RecentStore) App {
	return App{
		currentView: viewHome,
		cfg: views.RunConfig{
			OutputDir:   opts.OutputDir,
			ProfilePath: opts.ProfilePath,
			Concurrency: opts.Concurrency,
		},
		recentStore: store,
		zones:       profileZones(opts.ProfilePath),
		home:        views.NewHomeModel(opts.City),
	}
}

// profileZones returns the grid zones of the run profile for the results map.
// Profiles that need geocoding yield none.
func profileZones(path string) []model.Zone {
	p, err := config.LoadProfile(path)
	if err != nil {
		return nil
	}
	params, err := p.Params(context.Background(), nil)
	if err != nil {
		return nil
	}
	return params.Zones
}

func (a App) Init() tea.Cmd {
	return a.home.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && a.currentView != viewProgress {
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToHome:
		a.currentView = viewHome
		return a, nil
	case views.NavigateToLoad:
		a.currentView = viewFilePicker
		a.filePicker = views.NewFilePickerModel(a.cfg.OutputDir)
		return a, a.filePicker.Init()
	case views.StartRunMsg:
		a.currentView = viewProgress
		a.progress = views.NewProgressModel(msg, a.cfg)
		return a, tea.Batch(a.progress.Init(), a.sizeCmd())
	case views.NavigateToResults:
		a.currentView = viewResults
		a.results = views.NewResultsModel(msg.Path)
		a.results.SetZones(a.zones)
		a.recentStore.Add(msg.Path, msg.Count)
		return a, tea.Batch(a.results.Init(), a.sizeCmd())
	case views.NavigateToRecent:
		a.currentView = viewRecent
		var entries []views.RecentEntry
		for _, e := range a.recentStore.Load() {
			entries = append(entries, views.RecentEntry{
				Path:     e.Path,
				Count:    e.Count,
				OpenedAt: e.OpenedAt,
			})
		}
		a.recent = views.NewRecentModel(entries)
		return a, a.recent.Init()
	}

	var cmd tea.Cmd
	var m tea.Model
	switch a.currentView {
	case viewHome:
		m, cmd = a.home.Update(msg)
		a.home = m.(views.HomeModel)
	case viewProgress:
		m, cmd = a.progress.Update(msg)
		a.progress = m.(views.ProgressModel)
	case viewResults:
		m, cmd = a.results.Update(msg)
		a.results = m.(views.ResultsModel)
	case viewFilePicker:
		m, cmd = a.filePicker.Update(msg)
		a.filePicker = m.(views.FilePickerModel)
	case viewRecent:
		m, cmd = a.recent.Update(msg)
		a.recent = m.(views.RecentModel)
	}

	return a, cmd
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewHome:
		content = a.home.View()
	case viewProgress:
		content = a.progress.View()
	case viewResults:
		content = a.results.View()
	case viewFilePicker:
		content = a.filePicker.View()
	case viewRecent:
		content = a.recent.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// Run starts the TUI.
func Run(opts Options) error {
	p := tea.NewProgram(NewApp(opts, DefaultRecentStore()), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
