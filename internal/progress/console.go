package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	verboseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	stageStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
)

// Style returns the lipgloss style used for a level.
func Style(l Level) lipgloss.Style {
	switch l {
	case LevelVerbose:
		return verboseStyle
	case LevelWarning:
		return warningStyle
	case LevelError:
		return errorStyle
	case LevelSuccess:
		return successStyle
	default:
		return infoStyle
	}
}

// Console renders events and a progress bar to a terminal stream.
type Console struct {
	out      io.Writer
	verbose  bool
	bar      progress.Model
	interval time.Duration

	mu       sync.Mutex
	lastDraw time.Time
	drawn    bool
}

// NewConsole creates a Console writing to out. Verbose events are only
// printed when verbose is set.
func NewConsole(out io.Writer, verbose bool) *Console {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return &Console{
		out:      out,
		verbose:  verbose,
		bar:      bar,
		interval: 100 * time.Millisecond,
	}
}

// Handle is an event callback for NewReporter.
func (c *Console) Handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Level != LevelVerbose || c.verbose {
		c.clearLine()
		fmt.Fprintln(c.out, Style(ev.Level).Render(ev.Message))
		c.drawn = false
	}

	if time.Since(c.lastDraw) >= c.interval || ev.Done() == ev.Total {
		c.draw(ev.Snapshot)
	}
}

// Finish draws the final state and terminates the bar line.
func (c *Console) Finish(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draw(s)
	fmt.Fprintln(c.out)
	c.drawn = false
}

// Line renders a one-line progress view of s.
func (c *Console) Line(s Snapshot) string {
	return RenderLine(c.bar, s)
}

// RenderLine renders a one-line progress view of s with bar.
func RenderLine(bar progress.Model, s Snapshot) string {
	line := fmt.Sprintf("%s %s %d/%d", stageStyle.Render(string(s.Stage)), bar.ViewAs(s.Percent()), s.Done(), s.Total)
	if s.Failed > 0 {
		line += " " + errorStyle.Render(fmt.Sprintf("(%d failed)", s.Failed))
	}
	return line
}

func (c *Console) draw(s Snapshot) {
	if s.Total <= 0 {
		return
	}
	c.clearLine()
	fmt.Fprint(c.out, RenderLine(c.bar, s))
	c.lastDraw = time.Now()
	c.drawn = true
}

func (c *Console) clearLine() {
	if c.drawn {
		fmt.Fprint(c.out, "\r\033[2K")
	}
}
