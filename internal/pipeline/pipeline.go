package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/handiism/tcg-dataset/internal/augment"
	"github.com/handiism/tcg-dataset/internal/catalog"
	"github.com/handiism/tcg-dataset/internal/config"
	"github.com/handiism/tcg-dataset/internal/dataset"
	"github.com/handiism/tcg-dataset/internal/download"
	"github.com/handiism/tcg-dataset/internal/export"
	"github.com/handiism/tcg-dataset/internal/http"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/progress"
	"github.com/wb-go/wbf/retry"
)

// ErrTotalFailure is returned by Run when units were dispatched and every
// one of them failed.
var ErrTotalFailure = errors.New("every unit of work failed")

// ErrNotInitialized is returned by Run when Initialize has not succeeded.
var ErrNotInitialized = errors.New("pipeline not initialized")

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithEndpoints overrides the catalog API base URLs.
func WithEndpoints(e catalog.Endpoints) Option {
	return func(p *Pipeline) { p.endpoints = e }
}

// WithObjectStore sets the store used when publishing is enabled. Without
// it a MinIO client is built from the publish settings.
func WithObjectStore(s export.ObjectStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// Pipeline runs the dataset build: catalog fetch, existence check,
// download, split, augmentation and the optional export stages.
//
// Initialize performs every step that is fatal on failure. Run dispatches
// the work and only fails on cancellation or total failure.
type Pipeline struct {
	settings  *config.Settings
	reporter  *progress.Reporter
	client    *http.Client
	images    *ioutils.ImageService
	layout    dataset.Layout
	locks     *dataset.SlotLocks
	endpoints catalog.Endpoints
	store     export.ObjectStore
	runID     string

	ready   bool
	source  string
	catalog []model.Card
	pending []model.Card
	present int
}

// New creates a pipeline for settings. onEvent receives every progress
// event and may be nil.
func New(settings *config.Settings, onEvent func(progress.Event), opts ...Option) *Pipeline {
	client := http.NewClient(http.Options{
		UserAgent: settings.Catalog.UserAgent,
		Timeout:   settings.Catalog.Timeout,
		RateLimit: settings.Catalog.RateLimit,
		RateBurst: settings.Catalog.RateBurst,
		Retry: retry.Strategy{
			Attempts: settings.Catalog.Retry.Attempts,
			Delay:    settings.Catalog.Retry.Delay,
			Backoff:  settings.Catalog.Retry.Backoff,
		},
	})

	p := &Pipeline{
		settings:  settings,
		reporter:  progress.NewReporter(onEvent),
		client:    client,
		images:    ioutils.NewImageService(settings.Image.Width, settings.Image.Height, settings.Image.Quality),
		layout:    dataset.NewLayout(settings.Output.Root),
		locks:     &dataset.SlotLocks{},
		endpoints: catalog.DefaultEndpoints(),
		runID:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reporter returns the progress reporter shared by every stage.
func (p *Pipeline) Reporter() *progress.Reporter {
	return p.reporter
}

// Layout returns the dataset layout being written.
func (p *Pipeline) Layout() dataset.Layout {
	return p.layout
}

// Catalog returns the fetched card list after deduplication and capping.
func (p *Pipeline) Catalog() []model.Card {
	return p.catalog
}

// Pending returns the cards the download stage will process.
func (p *Pipeline) Pending() []model.Card {
	return p.pending
}

// Initialize fetches the catalog and determines which cards still need a
// primary image. Any error here is fatal to the run.
func (p *Pipeline) Initialize(ctx context.Context) error {
	src, err := catalog.NewSource(p.settings.Catalog.Selector, p.client, p.endpoints)
	if err != nil {
		return err
	}
	p.source = src.Name()

	if err := ioutils.EnsureDir(p.layout.Root()); err != nil {
		return fmt.Errorf("create dataset root: %w", err)
	}

	p.reporter.Emit(progress.LevelInfo, "Fetching %s catalog...", src.Name())

	fetcher := catalog.NewFetcher(src, catalog.NewCache(p.layout.Root()), p.settings.Catalog.Refresh)
	cards, err := fetcher.Fetch(ctx, p.settings.Catalog.MaxCards)
	if err != nil {
		return err
	}
	p.catalog = cards
	p.reporter.Emit(progress.LevelInfo, "Catalog has %d cards", len(cards))

	index := dataset.NewExistenceIndex(p.layout, p.images, p.settings.Image.StrictCheck, p.settings.WorkerCount())
	pending, present, err := index.Pending(ctx, cards)
	if err != nil {
		return fmt.Errorf("check existing images: %w", err)
	}
	p.pending = pending
	p.present = present
	p.ready = true

	p.reporter.Emit(progress.LevelInfo, "%d already present, %d to download", present, len(pending))
	return nil
}

// Run executes the remaining stages and returns the run summary. The
// summary is returned even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if !p.ready {
		return nil, ErrNotInitialized
	}

	start := time.Now()
	summary := &Summary{
		RunID:   p.runID,
		Source:  p.source,
		Catalog: len(p.catalog),
		Present: p.present,
		Pending: len(p.pending),
	}
	defer func() { summary.Duration = time.Since(start) }()

	pool := download.NewPool(p.client, p.images, p.layout, download.Options{
		Workers:      p.settings.WorkerCount(),
		FetchTimeout: p.settings.Image.FetchTimeout,
	}, p.reporter)

	report, err := pool.Run(ctx, p.pending)
	summary.add(report)
	if err != nil {
		return summary, err
	}
	p.reporter.Emit(progress.LevelSuccess, "Downloaded %d/%d images", report.Succeeded, len(p.pending))

	splitter := dataset.NewSplitter(p.layout, p.splitPolicy(), p.settings.WorkerCount(), p.locks)
	report, err = splitter.Apply(ctx, p.catalog)
	summary.add(report)
	if err != nil {
		return summary, err
	}

	if p.settings.Augment.Enabled {
		if err := p.augment(ctx, summary); err != nil {
			return summary, err
		}
	}

	if err := p.writeMetadata(summary); err != nil {
		return summary, err
	}

	if p.settings.Export.Parquet {
		exporter := export.NewParquetExporter(p.layout, p.settings.Export.ShardSizeMB, p.reporter)
		res, err := exporter.Export(ctx, summary.labels)
		if err != nil {
			return summary, fmt.Errorf("parquet export: %w", err)
		}
		summary.Shards = len(res.Shards)
		p.reporter.Emit(progress.LevelSuccess, "Wrote %d parquet shards to %s", len(res.Shards),
			filepath.Join(p.layout.Root(), export.ParquetDir))
	}

	if p.settings.Publish.Enabled {
		if err := p.publish(ctx, summary); err != nil {
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	summary.log()
	if summary.TotalFailure() {
		return summary, ErrTotalFailure
	}
	return summary, nil
}

// augment runs the engine over every configured partition. Only the slots
// that received a primary in this run are augmented, so a rerun over a
// complete dataset adds nothing.
func (p *Pipeline) augment(ctx context.Context, summary *Summary) error {
	engine := augment.NewEngine(p.images, p.layout, augment.Options{
		Amount:          p.settings.Augment.Amount,
		Verify:          p.settings.Augment.Verify,
		Seed:            p.settings.Augment.Seed,
		FirstUpsideDown: p.settings.Augment.FirstUpsideDown,
		Workers:         p.settings.WorkerCount(),
	}, p.locks, p.reporter)
	summary.AugmentSeed = engine.Seed()

	for _, name := range p.settings.Augment.Partitions {
		part, err := dataset.ParsePartition(name)
		if err != nil {
			return err
		}

		ids := p.fresh(part)
		if len(ids) == 0 {
			continue
		}

		p.reporter.Emit(progress.LevelInfo, "Augmenting %d %s slots with seed %d", len(ids), part, engine.Seed())
		report, stats, err := engine.Run(ctx, part, ids)
		summary.add(report)
		summary.Augment.Cards += stats.Cards
		summary.Augment.Originals += stats.Originals
		summary.Augment.Generated += stats.Generated
		summary.Augment.Verified += stats.Verified
		summary.Augment.Corrupted += stats.Corrupted
		summary.Augment.SlotErrors += stats.SlotErrors
		if err != nil {
			return err
		}
	}
	return nil
}

// fresh returns the pending cards that now have a primary in p.
func (p *Pipeline) fresh(part dataset.Partition) []string {
	ids := make([]string, 0, len(p.pending))
	for _, c := range p.pending {
		if p.layout.Slot(part, c.ID).HasPrimary() {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

func (p *Pipeline) writeMetadata(summary *Summary) error {
	stats, err := dataset.CollectStats(p.layout)
	if err != nil {
		return fmt.Errorf("collect stats: %w", err)
	}
	labels, err := dataset.Labels(p.layout)
	if err != nil {
		return fmt.Errorf("collect labels: %w", err)
	}
	if err := dataset.WriteLabelMapping(p.layout, labels); err != nil {
		return fmt.Errorf("write label mapping: %w", err)
	}
	if err := dataset.WriteDatasetInfo(p.layout, stats, labels); err != nil {
		return fmt.Errorf("write dataset info: %w", err)
	}
	summary.Stats = stats
	summary.labels = labels
	return nil
}

func (p *Pipeline) publish(ctx context.Context, summary *Summary) error {
	pub := p.settings.Publish
	store := p.store
	if store == nil {
		s, err := export.NewMinioStore(ctx, export.PublishOptions{
			Endpoint:  pub.Endpoint,
			AccessKey: pub.AccessKey,
			SecretKey: pub.SecretKey,
			Bucket:    pub.Bucket,
			Prefix:    pub.Prefix,
			UseSSL:    pub.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		store = s
	}

	report, err := export.NewPublisher(store, pub.Prefix, p.settings.WorkerCount(), p.reporter).Publish(ctx, p.layout)
	summary.add(report)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	p.reporter.Emit(progress.LevelSuccess, "Published %d files to %s/%s", report.Succeeded, pub.Bucket, pub.Prefix)
	return nil
}

func (p *Pipeline) splitPolicy() dataset.SplitPolicy {
	s := p.settings.Split
	return dataset.SplitPolicy{
		Mode:               s.Mode,
		Seed:               s.Seed,
		TestFraction:       s.TestFraction,
		ValidationFraction: s.ValidationFraction,
		TestEvery:          s.TestEvery,
		ValidationEvery:    s.ValidationEvery,
	}
}
