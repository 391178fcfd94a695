package download

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/handiism/tcg-dataset/internal/catalog"
	"github.com/handiism/tcg-dataset/internal/dataset"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/progress"
	"golang.org/x/sync/errgroup"
)

// ImageFetcher downloads image bytes with a per-request timeout.
type ImageFetcher interface {
	DownloadBytes(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// Task is one unit of download work: a card and the train slot its primary
// image is written to.
type Task struct {
	Card model.Card
	Slot dataset.Slot
}

// Result is the outcome of one Task. Exactly one of Written, Skipped or
// Failure is set.
type Result struct {
	Task    Task
	Written bool
	Skipped bool
	Failure *model.TaskFailure
}

// Options configures a Pool.
type Options struct {
	// Workers is the number of concurrent downloads. Zero means one per CPU.
	Workers int

	// FetchTimeout bounds each image request. A timed-out fetch fails the
	// task, not the run.
	FetchTimeout time.Duration
}

// Pool turns pending cards into primary images.
//
// Tasks are queued on a channel and claimed by a fixed set of workers, so
// each task runs at most once. A failing task is recorded and the pool keeps
// going; only cancellation stops it early.
type Pool struct {
	fetcher  ImageFetcher
	images   *ioutils.ImageService
	layout   dataset.Layout
	opts     Options
	reporter *progress.Reporter
}

// NewPool creates a Pool. reporter may be nil.
func NewPool(fetcher ImageFetcher, images *ioutils.ImageService, layout dataset.Layout, opts Options, reporter *progress.Reporter) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if reporter == nil {
		reporter = progress.NewReporter(nil)
	}
	return &Pool{
		fetcher:  fetcher,
		images:   images,
		layout:   layout,
		opts:     opts,
		reporter: reporter,
	}
}

// Run downloads every card and returns the aggregate report.
//
// The returned error is non-nil only when ctx was cancelled; the report
// then covers the tasks that finished before cancellation.
func (p *Pool) Run(ctx context.Context, cards []model.Card) (*model.Report, error) {
	results := make([]Result, len(cards))
	queue := make(chan int)

	p.reporter.Start(model.StageDownload, len(cards))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for i := range cards {
			select {
			case queue <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < p.opts.Workers; w++ {
		g.Go(func() error {
			for i := range queue {
				task := Task{Card: cards[i], Slot: p.layout.Slot(dataset.Train, cards[i].ID)}
				res, err := p.process(gctx, task)
				if err != nil {
					return err
				}
				results[i] = res
				p.record(res)
			}
			return nil
		})
	}

	err := g.Wait()
	return buildReport(results), err
}

// record forwards a result to the reporter.
func (p *Pool) record(res Result) {
	switch {
	case res.Failure != nil:
		p.reporter.Fail(*res.Failure)
	case res.Skipped:
		p.reporter.Complete(fmt.Sprintf("Skipped placeholder: %s", res.Task.Card.ID))
	default:
		p.reporter.Complete(fmt.Sprintf("Downloaded: %s", res.Task.Card.ID))
	}
}

// process runs one task. Task-level problems are returned inside Result;
// the error is reserved for cancellation.
func (p *Pool) process(ctx context.Context, task Task) (Result, error) {
	res := Result{Task: task}
	card := task.Card

	fail := func(stage model.Stage, err error) (Result, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		f := model.Failed(card.ID, stage, err)
		res.Failure = &f
		return res, nil
	}

	if !model.ValidID(card.ID) {
		return fail(model.StageWrite, fmt.Errorf("card id %q is not a valid slot name", card.ID))
	}
	if catalog.IsPlaceholder(card) {
		res.Skipped = true
		return res, nil
	}
	if !card.HasImage() {
		return fail(model.StageFetch, errors.New("card has no image url"))
	}

	data, err := p.fetcher.DownloadBytes(ctx, card.ImageURL, p.opts.FetchTimeout)
	if err != nil {
		return fail(model.StageFetch, err)
	}

	if err := p.images.Validate(data); err != nil {
		return fail(model.StageDecode, err)
	}
	img, err := p.images.Decode(data)
	if err != nil {
		return fail(model.StageDecode, err)
	}

	encoded, err := p.images.EncodeJPEG(p.images.Resize(img))
	if err != nil {
		return fail(model.StageEncode, err)
	}

	if err := ioutils.WriteFileAtomic(task.Slot.PrimaryPath(), encoded); err != nil {
		return fail(model.StageWrite, err)
	}

	res.Written = true
	return res, nil
}

func buildReport(results []Result) *model.Report {
	report := &model.Report{Stage: model.StageDownload}
	for _, r := range results {
		switch {
		case r.Failure != nil:
			report.Total++
			report.Fail(*r.Failure)
		case r.Skipped:
			report.Total++
			report.Skipped++
		case r.Written:
			report.Total++
			report.Succeeded++
		}
	}
	report.SortFailures()
	return report
}
