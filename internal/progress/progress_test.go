package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporterCountersAreMonotonic(t *testing.T) {
	var mu sync.Mutex
	var events []Event
	r := NewReporter(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	r.Start(model.StageDownload, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				r.Fail(model.Failed("card", model.StageFetch, errors.New("boom")))
				return
			}
			r.Complete("")
		}(i)
	}
	wg.Wait()

	s := r.Snapshot()
	assert.Equal(t, model.StageDownload, s.Stage)
	assert.Equal(t, int64(90), s.Completed)
	assert.Equal(t, int64(10), s.Failed)
	assert.Equal(t, int64(100), s.Done())
	assert.InDelta(t, 1.0, s.Percent(), 1e-9)

	errorEvents := 0
	for _, ev := range events {
		if ev.Level == LevelError {
			errorEvents++
			assert.Contains(t, ev.Message, "boom")
		}
	}
	assert.Equal(t, 10, errorEvents)
}

func TestReporterStartResets(t *testing.T) {
	r := NewReporter(nil)
	r.Start(model.StageDownload, 2)
	r.Complete("")
	r.Complete("")

	r.Start(model.StageAugment, 5)
	r.AddTotal(5)
	s := r.Snapshot()
	assert.Equal(t, model.StageAugment, s.Stage)
	assert.Zero(t, s.Done())
	assert.Equal(t, int64(10), s.Total)
	assert.Zero(t, s.Percent())
}

func TestConsoleRendersMessages(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	r := NewReporter(c.Handle)

	r.Start(model.StageDownload, 2)
	r.Complete("hidden verbose line")
	r.Fail(model.Failed("abc", model.StageDecode, errors.New("bad jpeg")))
	c.Finish(r.Snapshot())

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "bad jpeg")
	assert.NotContains(t, out, "hidden verbose line")
	assert.Contains(t, out, "2/2")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "success", LevelSuccess.String())
}
