package views

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/eyescan/internal/engine/pipeline"
	"github.com/rendis/eyescan/internal/engine/storage"
	"github.com/rendis/eyescan/internal/logging"
	"github.com/rendis/eyescan/internal/model"
	"github.com/rendis/eyescan/internal/report"
	"github.com/rendis/eyescan/internal/session"
	"github.com/rendis/eyescan/internal/tui/styles"
)

const latestShown = 5

// RunConfig is the app-wide configuration for runs started from the TUI.
type RunConfig struct {
	OutputDir   string
	ProfilePath string
	Concurrency int
}

// sharedState holds data shared between the pipeline goroutine and TUI.
// Lives behind a pointer so it survives bubbletea's value copies.
type sharedState struct {
	mu     sync.Mutex
	stats  pipeline.Stats
	cancel context.CancelFunc
	latest []string
}

func (s *sharedState) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

func (s *sharedState) getCancel() context.CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel
}

func (s *sharedState) push(h model.Hospital) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = append(s.latest, fmt.Sprintf("%s (%d)", h.Name, h.ReviewCount))
	if len(s.latest) > latestShown {
		s.latest = s.latest[len(s.latest)-latestShown:]
	}
}

func (s *sharedState) getLatest() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.latest...)
}

// ProgressModel runs one discovery and shows its live statistics.
type ProgressModel struct {
	mode        RunMode
	cfg         RunConfig
	progress    progress.Model
	spinner     spinner.Model
	startTime   time.Time
	done        bool
	confirmQuit bool
	err         error
	written     bool
	fellBack    bool
	count       int
	summary     string
	csvPath     string
	dbPath      string
	logPath     string
	width       int
	height      int
	shared      *sharedState
}

type progressTickMsg time.Time

type runCompleteMsg struct {
	Count    int
	Written  bool
	FellBack bool
	Summary  string
	Err      error
}

func NewProgressModel(msg StartRunMsg, cfg RunConfig) ProgressModel {
	ts := time.Now().Format("20060102_150405")
	base := filepath.Join(cfg.OutputDir, "eyescan_"+ts)

	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return ProgressModel{
		mode:      msg.Mode,
		cfg:       cfg,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		spinner:   s,
		startTime: time.Now(),
		csvPath:   base + ".csv",
		dbPath:    base + ".db",
		logPath:   base + ".log",
		shared:    &sharedState{},
	}
}

func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(
		m.startRun(),
		m.spinner.Tick,
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m ProgressModel) startRun() tea.Cmd {
	shared := m.shared
	cfg := m.cfg
	mode := m.mode
	out := session.Outputs{CSV: m.csvPath, SQLite: m.dbPath}
	logPath := m.logPath

	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		shared.setCancel(cancel)

		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return runCompleteMsg{Err: err}
		}
		log, closer, err := logging.New(logging.Options{Path: logPath})
		if err != nil {
			return runCompleteMsg{Err: err}
		}
		defer closer.Close()

		s, err := session.Prepare(ctx, session.Options{
			ProfilePath: cfg.ProfilePath,
			GridOnly:    mode == ModeGrid,
			TextOnly:    mode == ModeText,
			UseSample:   mode == ModeSample,
			MinReviews:  -1,
			Concurrency: cfg.Concurrency,
			Log:         log,
		})
		if err != nil {
			return runCompleteMsg{Err: err}
		}

		started := time.Now()
		hospitals, fellBack, runErr := s.Execute(ctx, &pipeline.RunOptions{
			SuppressStderr: true,
			Stats:          &shared.stats,
			OnHospital:     shared.push,
		})
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runCompleteMsg{Err: runErr}
		}
		if len(hospitals) == 0 {
			return runCompleteMsg{Err: runErr}
		}

		run := storage.Run{ID: s.RunID(), City: s.Params.City, Method: s.Method(), StartedAt: started, Count: len(hospitals)}
		if _, err := session.Write(context.WithoutCancel(ctx), out, run, hospitals, log); err != nil {
			return runCompleteMsg{Count: len(hospitals), Written: true, Err: err}
		}

		return runCompleteMsg{
			Count:    len(hospitals),
			Written:  true,
			FellBack: fellBack,
			Summary:  report.Render(report.Compute(s.Params.City, s.Method(), hospitals)),
			Err:      runErr,
		}
	}
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if cancel := m.shared.getCancel(); cancel != nil {
				cancel()
			}
			return m, tea.Quit
		case "esc":
			if m.done {
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			if m.confirmQuit {
				// Second esc stops the run; whatever was accepted is still written.
				if cancel := m.shared.getCancel(); cancel != nil {
					cancel()
				}
				m.confirmQuit = false
				return m, nil
			}
			m.confirmQuit = true
			return m, nil
		case "enter":
			if m.done && m.written {
				path, count := m.csvPath, m.count
				return m, func() tea.Msg { return NavigateToResults{Path: path, Count: count} }
			}
			if m.confirmQuit {
				m.confirmQuit = false
				return m, nil
			}
		}
		if m.confirmQuit {
			m.confirmQuit = false
		}
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case runCompleteMsg:
		m.done = true
		m.err = msg.Err
		m.written = msg.Written
		m.fellBack = msg.FellBack
		m.count = msg.Count
		m.summary = msg.Summary
		return m, nil
	}

	pModel, cmd := m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

func (m ProgressModel) View() string {
	var b strings.Builder

	title := fmt.Sprintf("Discovery: %s", m.mode)
	if !m.done {
		title = m.spinner.View() + " " + title
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n\n")

	statsBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(34).
		Render(m.renderStats())
	latestBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(44).
		Render(m.renderLatest())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, statsBox, " ", latestBox))
	b.WriteString("\n\n")

	var pct float64
	if total := m.shared.stats.QueriesTotal.Load(); total > 0 {
		pct = float64(m.shared.stats.QueriesDone.Load()) / float64(total)
	}
	if m.done && m.err == nil {
		pct = 1
	}
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString("\n\n")

	switch {
	case m.done:
		b.WriteString(m.renderDone())
	case m.confirmQuit:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop the run"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	default:
		b.WriteString(styles.StatusBar.Render("esc stop • ctrl+c quit"))
	}

	return b.String()
}

func (m ProgressModel) renderDone() string {
	var b strings.Builder
	muted := lipgloss.NewStyle().Foreground(styles.Muted)

	switch {
	case m.err != nil && !errors.Is(m.err, context.Canceled):
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case !m.written:
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Bold(true).
			Render("No hospitals found, nothing written"))
		b.WriteString("\n")
	default:
		status := fmt.Sprintf("Complete! %d hospitals", m.count)
		if errors.Is(m.err, context.Canceled) {
			status = fmt.Sprintf("Stopped. %d hospitals kept", m.count)
		}
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Bold(true).Render(status))
		b.WriteString("\n")
		if m.fellBack {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).
				Render("No live results, sample data written instead"))
			b.WriteString("\n")
		}
		b.WriteString(muted.Render(fmt.Sprintf("CSV: %s", m.csvPath)))
		b.WriteString("\n")
		if m.summary != "" {
			b.WriteString("\n")
			b.WriteString(m.summary)
			b.WriteString("\n")
		}
	}
	b.WriteString(muted.Render(fmt.Sprintf("Log: %s", m.logPath)))
	b.WriteString("\n\n")

	if m.written {
		b.WriteString(styles.StatusBar.Render("enter explore results • esc back"))
	} else {
		b.WriteString(styles.StatusBar.Render("esc back"))
	}
	return b.String()
}

func (m ProgressModel) renderStats() string {
	var sb strings.Builder
	st := &m.shared.stats
	elapsed := time.Since(m.startTime).Truncate(time.Second)

	statLabel := lipgloss.NewStyle().Foreground(styles.Muted).Width(14)
	statVal := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)

	row := func(label string, value string) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(statVal.Render(value))
		sb.WriteString("\n")
	}

	done, total := st.QueriesDone.Load(), st.QueriesTotal.Load()
	row("Queries:", fmt.Sprintf("%d/%d", done, total))
	row("Pages:", fmt.Sprintf("%d", st.PagesFetched.Load()))
	row("Results:", fmt.Sprintf("%d", st.ResultsSeen.Load()))
	row("Details:", fmt.Sprintf("%d", st.DetailsFetched.Load()))
	row("Accepted:", fmt.Sprintf("%d", st.Accepted.Load()))
	row("Duplicates:", fmt.Sprintf("%d", st.Duplicates.Load()))
	row("Few reviews:", fmt.Sprintf("%d", st.BelowReviews.Load()))
	if n := st.OutOfRange.Load(); n > 0 {
		row("Out of range:", fmt.Sprintf("%d", n))
	}

	errStyle := statVal
	if st.Errors.Load() > 0 {
		errStyle = lipgloss.NewStyle().Foreground(styles.Error).Bold(true)
	}
	sb.WriteString(statLabel.Render("Errors:"))
	sb.WriteString(errStyle.Render(fmt.Sprintf("%d", st.Errors.Load())))
	sb.WriteString("\n")

	if quota := st.Outcomes.Count(pipeline.LevelQuery, pipeline.StatusFailed, pipeline.CategoryQuota); quota > 0 {
		sb.WriteString(statLabel.Render("Quota:"))
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Bold(true).Render(fmt.Sprintf("%d", quota)))
		sb.WriteString("\n")
	}

	row("Elapsed:", elapsed.String())

	if done > 0 && total > 0 && !m.done {
		rate := float64(done) / elapsed.Seconds()
		remaining := float64(total-done) / rate
		eta := time.Duration(remaining * float64(time.Second)).Truncate(time.Second)
		row("ETA:", "~"+eta.String())
	}

	return strings.TrimRight(sb.String(), "\n")
}

func (m ProgressModel) renderLatest() string {
	var sb strings.Builder
	sb.WriteString(styles.Subtitle.Render("Latest accepted"))
	sb.WriteString("\n")
	latest := m.shared.getLatest()
	if len(latest) == 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("waiting..."))
		return sb.String()
	}
	for i := len(latest) - 1; i >= 0; i-- {
		sb.WriteString(truncate(latest[i], 40))
		if i > 0 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
