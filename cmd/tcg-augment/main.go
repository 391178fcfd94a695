package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/tcg-dataset/internal/augment"
	"github.com/handiism/tcg-dataset/internal/config"
	"github.com/handiism/tcg-dataset/internal/dataset"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/progress"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	d := config.DefaultSettings()

	var (
		configFlag    = pflag.String("config", "", "Path to config file")
		pathFlag      = pflag.String("path", d.Output.Root, "Dataset root directory")
		amountFlag    = pflag.Int("amount", d.Augment.Amount, "Derivatives generated per card")
		verifyFlag    = pflag.Bool("verify", false, "Decode-check every generated image")
		seedFlag      = pflag.Int64("seed", 0, "Recipe seed (0 = random)")
		upsideFlag    = pflag.Bool("upside-down", false, "Make the first derivative an exact 180° rotation")
		partitionFlag = pflag.String("partition", string(dataset.Train), "Partition to augment")
		threadsFlag   = pflag.Int("threads", 0, "Worker count (0 = one per CPU)")
		verboseFlag   = pflag.BoolP("verbose", "v", false, "Show per-card progress messages")
	)
	pflag.Parse()

	settings, err := config.Load(*configFlag, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// --amount means derivatives here, not the catalog cap, so the flags are
	// applied by hand instead of through config.Load.
	changed := func(name string) bool {
		f := pflag.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("path") {
		settings.Output.Root = *pathFlag
	}
	if changed("amount") {
		settings.Augment.Amount = *amountFlag
	}
	if changed("verify") {
		settings.Augment.Verify = *verifyFlag
	}
	if changed("seed") {
		settings.Augment.Seed = *seedFlag
	}
	if changed("upside-down") {
		settings.Augment.FirstUpsideDown = *upsideFlag
	}
	if changed("threads") {
		settings.Workers = *threadsFlag
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	part, err := dataset.ParsePartition(*partitionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	zlog.Init()
	if level, err := zerolog.ParseLevel(settings.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	layout := dataset.NewLayout(settings.Output.Root)
	if _, err := os.Stat(layout.PartitionDir(part)); err != nil {
		fmt.Fprintf(os.Stderr, "No %s partition under %s: %v\n", part, settings.Output.Root, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := progress.NewConsole(os.Stdout, *verboseFlag)
	reporter := progress.NewReporter(console.Handle)
	images := ioutils.NewImageService(settings.Image.Width, settings.Image.Height, settings.Image.Quality)

	engine := augment.NewEngine(images, layout, augment.Options{
		Amount:          settings.Augment.Amount,
		Verify:          settings.Augment.Verify,
		Seed:            settings.Augment.Seed,
		FirstUpsideDown: settings.Augment.FirstUpsideDown,
		Workers:         settings.WorkerCount(),
	}, nil, reporter)

	fmt.Printf("Augmenting %s with %d derivatives per card (seed %d)\n\n", layout.PartitionDir(part), settings.Augment.Amount, engine.Seed())

	report, stats, err := engine.Run(ctx, part, nil)
	console.Finish(reporter.Snapshot())

	if ctx.Err() != nil {
		fmt.Println("\nAugmentation cancelled.")
		os.Exit(130)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Augmentation statistics")
	fmt.Println("----------------------------------------")
	fmt.Printf("Cards:            %d\n", stats.Cards)
	fmt.Printf("Original images:  %d\n", stats.Originals)
	fmt.Printf("Generated images: %d\n", stats.Generated)
	fmt.Printf("Total images:     %d\n", stats.Total())
	fmt.Printf("Multiplier:       %.1fx\n", stats.Multiplier())
	if settings.Augment.Verify {
		fmt.Printf("Verified:         %d ok, %d corrupted\n", stats.Verified, stats.Corrupted)
	}
	if report.Failed() > 0 {
		style := progress.Style(progress.LevelError)
		fmt.Println(style.Render(fmt.Sprintf("Failures:         %d", report.Failed())))
		for _, f := range report.Failures {
			fmt.Println(style.Render("  x " + f.Error()))
		}
	}

	if report.AllFailed() {
		os.Exit(1)
	}
}
