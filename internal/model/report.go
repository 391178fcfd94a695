package model

import (
	"fmt"
	"sort"
)

// Stage names the pipeline stage a unit of work belongs to.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageDecode  Stage = "decode"
	StageEncode  Stage = "encode"
	StageWrite   Stage = "write"
	StageSplit   Stage = "split"
	StageAugment Stage = "augment"
	StageVerify  Stage = "verify"
	StageExport  Stage = "export"
	StagePublish Stage = "publish"

	// StageDownload groups fetch/decode/encode/write for reporting.
	StageDownload Stage = "download"
)

// TaskFailure describes one failed unit of work. Index is the image index
// inside the card's slot, or -1 when the failure is not tied to one image.
type TaskFailure struct {
	CardID string `json:"card_id"`
	Stage  Stage  `json:"stage"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Error implements error so a failure can travel through error returns.
func (f TaskFailure) Error() string {
	if f.Index >= 0 {
		return fmt.Sprintf("%s: card %s index %04d: %s", f.Stage, f.CardID, f.Index, f.Reason)
	}
	return fmt.Sprintf("%s: card %s: %s", f.Stage, f.CardID, f.Reason)
}

// Failed builds a TaskFailure for a whole card.
func Failed(cardID string, stage Stage, err error) TaskFailure {
	return TaskFailure{CardID: cardID, Stage: stage, Index: -1, Reason: err.Error()}
}

// Report is the aggregate outcome of a stage.
type Report struct {
	Stage     Stage         `json:"stage"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Failures  []TaskFailure `json:"failures,omitempty"`
}

// Fail records a failed unit.
func (r *Report) Fail(f TaskFailure) {
	r.Failures = append(r.Failures, f)
}

// Failed returns the number of failed units.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// AllFailed reports whether every attempted unit failed. A stage that had
// nothing to attempt has not failed.
func (r *Report) AllFailed() bool {
	return r.Failed() > 0 && r.Succeeded == 0
}

// SortFailures orders failures by card ID then index so reports are stable
// regardless of worker completion order.
func (r *Report) SortFailures() {
	sort.Slice(r.Failures, func(i, j int) bool {
		a, b := r.Failures[i], r.Failures[j]
		if a.CardID != b.CardID {
			return a.CardID < b.CardID
		}
		return a.Index < b.Index
	})
}
