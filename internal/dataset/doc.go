// Package dataset owns the on-disk dataset layout.
//
//	<root>/
//	  data/
//	    train/<card-id>/0000.jpg [, 0001.jpg, ...]
//	    test/<card-id>/0000.jpg [, ...]
//	    validation/<card-id>/0000.jpg [, ...]
//	  label_mapping.json
//	  dataset_info.yaml
//
// A Slot is one card directory inside one partition. Index 0000 is the
// primary image; higher indices are derivatives and are always contiguous.
// SlotLocks serialises writers of the same slot.
//
// ExistenceIndex filters a catalog down to cards that still need a primary,
// Splitter mirrors primaries into test and validation, and CollectStats,
// WriteLabelMapping and WriteDatasetInfo describe the result for ML tooling.
package dataset
