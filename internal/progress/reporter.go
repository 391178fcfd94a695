package progress

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/handiism/tcg-dataset/internal/model"
)

// Level indicates the severity/type of a progress message.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "info"
	}
}

// Event is a progress update. The counters are a snapshot taken when the
// event was emitted; they only ever grow within a stage.
type Event struct {
	Message string
	Level   Level
	Snapshot
}

// Snapshot is the state of the current stage.
type Snapshot struct {
	Stage     model.Stage
	Completed int64
	Failed    int64
	Total     int64
}

// Done returns the number of finished units, successful or not.
func (s Snapshot) Done() int64 {
	return s.Completed + s.Failed
}

// Percent returns the finished fraction in [0, 1].
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Done()) / float64(s.Total)
	if p > 1 {
		return 1
	}
	return p
}

// Reporter aggregates progress from every worker. The counters are the only
// state written by all workers and are updated atomically; the event
// callback may be invoked concurrently and must be safe for that.
type Reporter struct {
	completed atomic.Int64
	failed    atomic.Int64
	total     atomic.Int64

	mu    sync.RWMutex
	stage model.Stage

	onEvent func(Event)
}

// NewReporter creates a Reporter. onEvent may be nil.
func NewReporter(onEvent func(Event)) *Reporter {
	return &Reporter{onEvent: onEvent}
}

// Start resets the counters for a new stage of total units.
func (r *Reporter) Start(stage model.Stage, total int) {
	r.mu.Lock()
	r.stage = stage
	r.mu.Unlock()

	r.completed.Store(0)
	r.failed.Store(0)
	r.total.Store(int64(total))

	r.Emit(LevelInfo, "%s: %d units", stage, total)
}

// AddTotal grows the expected unit count of the current stage.
func (r *Reporter) AddTotal(n int) {
	r.total.Add(int64(n))
}

// Complete records a successful unit.
func (r *Reporter) Complete(message string) {
	r.completed.Add(1)
	if message != "" {
		r.emit(Event{Message: message, Level: LevelVerbose})
	}
}

// Fail records a failed unit.
func (r *Reporter) Fail(f model.TaskFailure) {
	r.failed.Add(1)
	r.emit(Event{Message: f.Error(), Level: LevelError})
}

// Snapshot returns the current counters.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.RLock()
	stage := r.stage
	r.mu.RUnlock()

	return Snapshot{
		Stage:     stage,
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Total:     r.total.Load(),
	}
}

// Emit sends a formatted message without touching the counters.
func (r *Reporter) Emit(level Level, format string, args ...any) {
	r.emit(Event{Message: fmt.Sprintf(format, args...), Level: level})
}

func (r *Reporter) emit(ev Event) {
	if r == nil || r.onEvent == nil {
		return
	}
	ev.Snapshot = r.Snapshot()
	r.onEvent(ev)
}
