package pipeline

import (
	"time"

	"github.com/handiism/tcg-dataset/internal/augment"
	"github.com/handiism/tcg-dataset/internal/dataset"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/wb-go/wbf/zlog"
)

// Summary is the end-of-run report.
type Summary struct {
	RunID    string
	Source   string
	Catalog  int
	Present  int
	Pending  int
	Duration time.Duration

	// Reports holds one report per executed stage, in execution order.
	Reports []*model.Report

	Augment     augment.Stats
	AugmentSeed int64
	Stats       dataset.Stats
	Shards      int

	labels []string
}

func (s *Summary) add(r *model.Report) {
	if r != nil {
		s.Reports = append(s.Reports, r)
	}
}

// Report returns the report of stage, or nil when the stage did not run.
// Stages that ran more than once are merged.
func (s *Summary) Report(stage model.Stage) *model.Report {
	var out *model.Report
	for _, r := range s.Reports {
		if r.Stage != stage {
			continue
		}
		if out == nil {
			out = &model.Report{Stage: stage}
		}
		out.Total += r.Total
		out.Succeeded += r.Succeeded
		out.Skipped += r.Skipped
		out.Failures = append(out.Failures, r.Failures...)
	}
	return out
}

// Succeeded returns the number of successful units across all stages.
func (s *Summary) Succeeded() int {
	n := 0
	for _, r := range s.Reports {
		n += r.Succeeded
	}
	return n
}

// Failures returns every failure across all stages.
func (s *Summary) Failures() []model.TaskFailure {
	var out []model.TaskFailure
	for _, r := range s.Reports {
		out = append(out, r.Failures...)
	}
	return out
}

// TotalFailure reports whether units failed and none succeeded.
func (s *Summary) TotalFailure() bool {
	return len(s.Failures()) > 0 && s.Succeeded() == 0
}

func (s *Summary) log() {
	ev := zlog.Logger.Info().
		Str("run", s.RunID).
		Str("source", s.Source).
		Int("catalog", s.Catalog).
		Int("present", s.Present).
		Int("pending", s.Pending).
		Int("succeeded", s.Succeeded()).
		Int("failed", len(s.Failures())).
		Dur("duration", s.Duration)
	if s.Augment.Generated > 0 {
		ev = ev.Int("generated", s.Augment.Generated).Int64("seed", s.AugmentSeed)
	}
	ev.Msg("pipeline finished")

	for _, f := range s.Failures() {
		zlog.Logger.Warn().
			Str("card", f.CardID).
			Str("stage", string(f.Stage)).
			Int("index", f.Index).
			Str("err", f.Reason).
			Msg("task failed")
	}
}
