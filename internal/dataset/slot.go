package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrSlotInvariant is returned when a slot is in a state an operation
// cannot work with, e.g. augmenting a slot that has no primary image.
var ErrSlotInvariant = errors.New("slot invariant violated")

// PrimaryIndex is the index of the unmodified primary image.
const PrimaryIndex = 0

// ImageExt is the extension of every image in the dataset.
const ImageExt = ".jpg"

// Slot is the directory holding every image index of one card within one
// partition. Indices are contiguous from 0000.
type Slot struct {
	Partition Partition
	ID        string
	Dir       string
}

// FileName returns the file name for index, e.g. 0007.jpg.
func FileName(index int) string {
	return fmt.Sprintf("%04d%s", index, ImageExt)
}

// ParseIndex extracts the index from a file name such as 0007.jpg.
func ParseIndex(name string) (int, bool) {
	stem, ok := strings.CutSuffix(strings.ToLower(name), ImageExt)
	if !ok || len(stem) < 4 {
		return 0, false
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Key identifies the slot across partitions.
func (s Slot) Key() string {
	return string(s.Partition) + "/" + s.ID
}

// Path returns the path of index within the slot.
func (s Slot) Path(index int) string {
	return filepath.Join(s.Dir, FileName(index))
}

// PrimaryPath returns the path of the 0000 image.
func (s Slot) PrimaryPath() string {
	return s.Path(PrimaryIndex)
}

// RelPath returns "<card-id>/<NNNN>.jpg", the path used inside exports.
func (s Slot) RelPath(index int) string {
	return s.ID + "/" + FileName(index)
}

// Indices lists the image indices present in the slot in ascending order.
// Temporary files and foreign names are ignored. A missing slot yields no
// indices and no error.
func (s Slot) Indices() ([]int, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := ParseIndex(e.Name()); ok {
			indices = append(indices, n)
		}
	}
	sort.Ints(indices)
	return indices, nil
}

// MaxIndex returns the highest index in the slot, or -1 when it is empty.
func (s Slot) MaxIndex() (int, error) {
	indices, err := s.Indices()
	if err != nil {
		return -1, err
	}
	if len(indices) == 0 {
		return -1, nil
	}
	return indices[len(indices)-1], nil
}

// HasPrimary reports whether the 0000 image exists and is non-empty.
func (s Slot) HasPrimary() bool {
	info, err := os.Stat(s.PrimaryPath())
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// SlotIDs lists the slot directories of a partition in sorted order.
func (l Layout) SlotIDs(p Partition) ([]string, error) {
	entries, err := os.ReadDir(l.PartitionDir(p))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// SlotLocks serialises writers per slot while leaving distinct slots
// independent.
type SlotLocks struct {
	locks sync.Map // slot key -> *sync.Mutex
}

// Lock acquires the lock of slot and returns its release function.
func (l *SlotLocks) Lock(slot Slot) func() {
	v, _ := l.locks.LoadOrStore(slot.Key(), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
