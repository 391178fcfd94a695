package main

import (
	"fmt"
	"time"

	"github.com/handiism/tcg-dataset/internal/dataset"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/pipeline"
	"github.com/handiism/tcg-dataset/internal/progress"
)

// maxListedFailures bounds the failure list printed at the end of a run.
const maxListedFailures = 20

func printSummary(s *pipeline.Summary) {
	ok := progress.Style(progress.LevelSuccess)
	bad := progress.Style(progress.LevelError)
	dim := progress.Style(progress.LevelVerbose)

	fmt.Println()
	fmt.Println("----------------------------------------")
	fmt.Printf("Catalog: %d cards (%d present, %d pending)\n", s.Catalog, s.Present, s.Pending)

	for _, stage := range []model.Stage{model.StageDownload, model.StageSplit, model.StageAugment, model.StageExport, model.StagePublish} {
		r := s.Report(stage)
		if r == nil || r.Total == 0 {
			continue
		}
		line := fmt.Sprintf("%-9s %d succeeded / %d failed", stage, r.Succeeded, r.Failed())
		if r.Skipped > 0 {
			line += fmt.Sprintf(" (%d skipped)", r.Skipped)
		}
		if r.Failed() > 0 {
			fmt.Println(bad.Render(line))
		} else {
			fmt.Println(ok.Render(line))
		}
	}

	if s.Augment.Generated > 0 {
		fmt.Printf("Augmented: %d generated, seed %d\n", s.Augment.Generated, s.AugmentSeed)
	}
	for _, p := range dataset.Partitions() {
		ps := s.Stats.Partitions[p]
		if ps.Slots == 0 {
			continue
		}
		fmt.Printf("%-10s %d cards, %d images, %.2f MB\n", p, ps.Slots, ps.Images, float64(ps.Bytes)/1024/1024)
	}
	if s.Shards > 0 {
		fmt.Printf("Parquet: %d shards\n", s.Shards)
	}

	failures := s.Failures()
	for i, f := range failures {
		if i == maxListedFailures {
			fmt.Println(dim.Render(fmt.Sprintf("  ... and %d more", len(failures)-i)))
			break
		}
		fmt.Println(bad.Render("  x " + f.Error()))
	}
	fmt.Println(dim.Render(fmt.Sprintf("Finished in %s", s.Duration.Round(time.Millisecond))))
}
