// Package progress aggregates per-unit progress from concurrent workers.
//
// Workers call Complete or Fail on a shared Reporter; the counters are
// atomic and each call produces an Event carrying a Snapshot of them. The
// Console renders those events to a terminal with a bubbles progress bar,
// and the tui package polls Snapshot on a tick.
//
//	console := progress.NewConsole(os.Stderr, false)
//	reporter := progress.NewReporter(console.Handle)
//
//	reporter.Start(model.StageDownload, len(pending))
//	reporter.Complete("")
//	reporter.Fail(model.Failed(id, model.StageFetch, err))
package progress
