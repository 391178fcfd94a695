// Package augment generates derivative images from slot primaries.
//
// # Recipes
//
// Each derivative is described by a Recipe: two to four distinct transform
// kinds, sampled without replacement, each with a parameter drawn from a
// fixed range:
//
//	rotate      -15°..+15° (filled corners)
//	zoom        0.95..1.05, re-cropped to the target box
//	shift       ±5% on each axis (filled)
//	flip        horizontal or vertical
//	brightness  -30..+30 additive
//	contrast    0.7..1.3
//	saturation  0.5..1.5
//	noise       intensity 5..25
//	blur        Gaussian sigma 0.5..2.0
//
// Transforms always run in that order, geometric before photometric.
// NewRecipe is a pure function of (seed, slot, index), so a run can be
// reproduced from its seed.
//
// # Engine
//
//	engine := augment.NewEngine(images, layout, augment.Options{
//	    Amount: 5,
//	    Verify: true,
//	}, locks, reporter)
//
//	report, stats, err := engine.Run(ctx, dataset.Train, nil)
//
// New images are written after the highest existing index of each slot, so
// running amount=5 and then amount=3 on a fresh slot yields 0001..0008. The
// primary image 0000 is only ever read.
package augment
