package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Partition is one of the physically independent image trees.
type Partition string

const (
	Train      Partition = "train"
	Test       Partition = "test"
	Validation Partition = "validation"
)

// Partitions lists every partition in canonical order.
func Partitions() []Partition {
	return []Partition{Train, Test, Validation}
}

// ParsePartition parses a partition name.
func ParsePartition(s string) (Partition, error) {
	switch p := Partition(strings.ToLower(strings.TrimSpace(s))); p {
	case Train, Test, Validation:
		return p, nil
	default:
		return "", fmt.Errorf("unknown partition %q", s)
	}
}

// Layout resolves paths under a dataset root:
//
//	<root>/data/<partition>/<card-id>/<NNNN>.jpg
type Layout struct {
	root string
}

// NewLayout creates a Layout for root.
func NewLayout(root string) Layout {
	return Layout{root: root}
}

// Root returns the dataset root.
func (l Layout) Root() string { return l.root }

// DataDir returns <root>/data.
func (l Layout) DataDir() string {
	return filepath.Join(l.root, "data")
}

// PartitionDir returns <root>/data/<partition>.
func (l Layout) PartitionDir(p Partition) string {
	return filepath.Join(l.DataDir(), string(p))
}

// Slot returns the slot of card id within partition p.
func (l Layout) Slot(p Partition, id string) Slot {
	return Slot{
		Partition: p,
		ID:        id,
		Dir:       filepath.Join(l.PartitionDir(p), id),
	}
}
