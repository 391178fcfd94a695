// Package model defines the core data structures shared by the
// tcg-dataset pipeline stages.
//
// # Card
//
// Card is one catalog entry: a stable identifier used as the slot directory
// name, the URL of its primary image and the opaque catalog metadata:
//
//	card := model.NewCard("4f9b...", "https://cards.scryfall.io/png/...", raw)
//	fmt.Println(card.ID)
//
// # Reports
//
// Stages never abort on a single unit failure. Each failed unit becomes a
// TaskFailure and the stage returns a Report:
//
//	report := model.Report{Stage: model.StageDownload}
//	report.Fail(model.TaskFailure{CardID: id, Stage: model.StageDownload, Reason: err.Error()})
//	fmt.Println(report.Succeeded, report.Failed())
package model
