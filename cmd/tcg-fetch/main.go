package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/handiism/tcg-dataset/internal/config"
	"github.com/handiism/tcg-dataset/internal/pipeline"
	"github.com/handiism/tcg-dataset/internal/progress"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	d := config.DefaultSettings()

	// Command line flags. Their names are bound to configuration keys by
	// config.Load, so they override the config file and TCG_* variables.
	var (
		configFlag  = pflag.String("config", "", "Path to config file (default ./config/tcg.yaml)")
		verboseFlag = pflag.BoolP("verbose", "v", false, "Show per-card progress messages")
	)
	pflag.String("tcg", d.Catalog.Selector, `Catalog selector: "mtg", "mtg:<scryfall query>" or "ga"`)
	pflag.Int("amount", 0, "Maximum number of cards to process (0 = all)")
	pflag.Bool("refresh", false, "Refetch the catalog instead of using the cached copy")
	pflag.String("path", d.Output.Root, "Dataset root directory")
	pflag.Int("threads", 0, "Worker count (0 = one per CPU)")
	pflag.Int("width", d.Image.Width, "Target image width")
	pflag.Int("height", d.Image.Height, "Target image height")
	pflag.Bool("strict", false, "Treat existing primaries with the wrong size as missing")
	pflag.String("split", d.Split.Mode, `Split mode: "train", "fraction" or "every"`)
	pflag.Int64("seed", d.Split.Seed, "Seed for the fraction split")
	pflag.Float64("test-fraction", 0, "Share of cards mirrored into test")
	pflag.Float64("val-fraction", 0, "Share of cards mirrored into validation")
	pflag.Bool("augment", false, "Generate augmented images after download")
	pflag.Int("augment-amount", d.Augment.Amount, "Derivatives generated per card")
	pflag.Bool("verify", false, "Decode-check every generated image")
	pflag.Bool("upside-down", false, "Make the first derivative an exact 180° rotation")
	pflag.Bool("parquet", false, "Export parquet shards")
	pflag.Bool("publish", false, "Mirror the dataset to the configured bucket")
	pflag.String("log-level", d.Log.Level, "Log level: debug, info, warn or error")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "TCG Fetch - Build card image datasets")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  tcg-fetch [options]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "For interactive mode, use: tcg-tui")
		fmt.Fprintln(os.Stderr)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	settings, err := config.Load(*configFlag, pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	zlog.Init()
	level, err := zerolog.ParseLevel(settings.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", settings.Log.Level, err)
		os.Exit(1)
	}
	zerolog.SetGlobalLevel(level)

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	console := progress.NewConsole(os.Stdout, *verboseFlag)
	p := pipeline.New(settings, console.Handle)

	fmt.Println(progress.Style(progress.LevelSuccess).Bold(true).Render("TCG Fetch"))
	fmt.Printf("Catalog %s -> %s\n\n", settings.Catalog.Selector, settings.Output.Root)

	if err := p.Initialize(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nCancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}

	summary, err := p.Run(ctx)
	console.Finish(p.Reporter().Snapshot())

	switch {
	case ctx.Err() != nil:
		if summary != nil {
			printSummary(summary)
		}
		fmt.Println("\nRun cancelled.")
		os.Exit(130)
	case errors.Is(err, pipeline.ErrTotalFailure):
		printSummary(summary)
		fmt.Fprintln(os.Stderr, "\nEvery task failed.")
		os.Exit(1)
	case err != nil:
		if summary != nil {
			printSummary(summary)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printSummary(summary)
}
