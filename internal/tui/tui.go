// Package tui provides a Bubble Tea terminal user interface for the dataset
// builder.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/handiism/tcg-dataset/internal/config"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/pipeline"
	reporting "github.com/handiism/tcg-dataset/internal/progress"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

// maxLogs is the number of progress messages kept on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateInitializing
	StateRunning
	StateComplete
	StateError
)

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []reporting.Event
	events    chan reporting.Event
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	pipeline *pipeline.Pipeline
	snapshot reporting.Snapshot
	summary  *pipeline.Summary

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model. settings supplies everything except the
// catalog selector, which is typed in.
func NewModel(settings *config.Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "mtg, mtg:set:lea or ga"
	ti.SetValue(settings.Catalog.Selector)
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		events:    make(chan reporting.Event, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// InitDoneMsg is sent when the catalog is fetched and indexed.
	InitDoneMsg struct {
		Pipeline *pipeline.Pipeline
		Err      error
	}

	// RunDoneMsg is sent when the pipeline run returns.
	RunDoneMsg struct {
		Summary *pipeline.Summary
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateRunning || m.state == StateInitializing {
				m.cancel()
				m.state = StateError
				m.err = errors.New("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.settings.Catalog.Selector = strings.TrimSpace(m.textInput.Value())
				m.state = StateInitializing
				return m, tea.Batch(m.initialize(), m.spinner.Tick, m.tickProgress())
			}

		case "tab":
			if m.state == StateInput {
				m.settings.Augment.Enabled = !m.settings.Augment.Enabled
				return m, nil
			}

		case "ctrl+v":
			if m.state == StateInput {
				m.settings.Augment.Verify = !m.settings.Augment.Verify
				return m, nil
			}

		case "ctrl+r":
			if m.state == StateInput {
				m.settings.Catalog.Refresh = !m.settings.Catalog.Refresh
				return m, nil
			}

		case "ctrl+l":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.state = StateInput
				m.logs = nil
				m.err = nil
				m.pipeline = nil
				m.summary = nil
				m.snapshot = reporting.Snapshot{}
				m.events = make(chan reporting.Event, 256)
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.Focus()
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case InitDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.pipeline = msg.Pipeline
			m.state = StateRunning
			cmds = append(cmds, m.run())
		}

	case RunDoneMsg:
		m.drainEvents()
		m.summary = msg.Summary
		if m.pipeline != nil {
			m.snapshot = m.pipeline.Reporter().Snapshot()
		}
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errors.New("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.state == StateInitializing || m.state == StateRunning {
			m.drainEvents()
			if m.pipeline != nil {
				m.snapshot = m.pipeline.Reporter().Snapshot()
			}
			cmds = append(cmds, m.progress.SetPercent(m.snapshot.Percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// drainEvents moves queued progress events into the on-screen log.
func (m *Model) drainEvents() {
	for {
		select {
		case ev := <-m.events:
			if ev.Level == reporting.LevelVerbose && !m.verbose {
				continue
			}
			m.logs = append(m.logs, ev)
			if len(m.logs) > maxLogs {
				m.logs = m.logs[len(m.logs)-maxLogs:]
			}
		default:
			return
		}
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("TCG Fetch"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Build card image datasets"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateInitializing:
		b.WriteString(m.viewInitializing())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Catalog selector:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s Augment, %d per card (tab)\n", checkbox(m.settings.Augment.Enabled), m.settings.Augment.Amount)
	fmt.Fprintf(&b, "  %s Verify augmented images (ctrl+v)\n", checkbox(m.settings.Augment.Verify))
	fmt.Fprintf(&b, "  %s Refresh cached catalog (ctrl+r)\n", checkbox(m.settings.Catalog.Refresh))
	fmt.Fprintf(&b, "  %s Verbose output (ctrl+l)\n", checkbox(m.verbose))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Dataset root: %s  |  %dx%d", m.settings.Output.Root, m.settings.Image.Width, m.settings.Image.Height)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewInitializing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Fetching catalog..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	if m.pipeline != nil {
		b.WriteString(infoStyle.Render(fmt.Sprintf("%d cards in catalog, %d to download",
			len(m.pipeline.Catalog()), len(m.pipeline.Pending()))))
		b.WriteString("\n\n")
	}

	b.WriteString(reporting.RenderLine(m.progress, m.snapshot))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	s := m.summary
	if s == nil {
		return boxStyle.Render("Done")
	}

	var lines []string
	lines = append(lines, "Dataset complete!", "")
	lines = append(lines, fmt.Sprintf("Catalog:   %d cards", s.Catalog))
	lines = append(lines, fmt.Sprintf("Present:   %d", s.Present))
	if r := s.Report(model.StageDownload); r != nil {
		lines = append(lines, fmt.Sprintf("Download:  %d succeeded / %d failed", r.Succeeded, r.Failed()))
	}
	if s.Augment.Generated > 0 {
		lines = append(lines, fmt.Sprintf("Augmented: %d images (seed %d)", s.Augment.Generated, s.AugmentSeed))
	}
	total := s.Stats.Total()
	lines = append(lines, fmt.Sprintf("Images:    %d (%.2f MB)", total.Images, float64(total.Bytes)/1024/1024))

	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, ev := range m.logs {
		prefix := "•"
		switch ev.Level {
		case reporting.LevelError:
			prefix = "✗"
		case reporting.LevelWarning:
			prefix = "!"
		case reporting.LevelSuccess:
			prefix = "✓"
		case reporting.LevelInfo:
			prefix = "›"
		}
		b.WriteString(reporting.Style(ev.Level).Render(prefix + " " + ev.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • tab: augment • ctrl+v: verify • ctrl+r: refresh • esc: quit"
	case StateInitializing, StateRunning:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// initialize fetches the catalog and builds the pipeline.
func (m *Model) initialize() tea.Cmd {
	settings := *m.settings
	events := m.events
	ctx := m.ctx

	return func() tea.Msg {
		p := pipeline.New(&settings, func(ev reporting.Event) {
			select {
			case events <- ev:
			default:
			}
		})
		if err := p.Initialize(ctx); err != nil {
			return InitDoneMsg{Err: err}
		}
		return InitDoneMsg{Pipeline: p}
	}
}

// run executes the pipeline in the background.
func (m *Model) run() tea.Cmd {
	p := m.pipeline
	ctx := m.ctx

	return func() tea.Msg {
		summary, err := p.Run(ctx)
		return RunDoneMsg{Summary: summary, Err: err}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	p := tea.NewProgram(NewModel(settings), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
