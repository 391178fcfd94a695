// Package pipeline wires the dataset stages together.
//
// A run is split in two phases, mirroring how the CLIs drive it:
//
//	p := pipeline.New(settings, onEvent)
//	if err := p.Initialize(ctx); err != nil {
//		// catalog or setup failure, nothing was dispatched
//	}
//	summary, err := p.Run(ctx)
//
// Per-unit failures never abort Run; they are collected in the Summary.
// Run returns ErrTotalFailure only when every dispatched unit failed.
package pipeline
