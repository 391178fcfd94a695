package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"gopkg.in/yaml.v3"
)

// File names written next to the data directory.
const (
	LabelMappingFile = "label_mapping.json"
	DatasetInfoFile  = "dataset_info.yaml"
)

// maxInfoLabels caps the class names listed in dataset_info.yaml; the full
// list lives in label_mapping.json.
const maxInfoLabels = 50

// PartitionStats summarises one partition.
type PartitionStats struct {
	Slots  int   `json:"slots"`
	Images int   `json:"images"`
	Bytes  int64 `json:"bytes"`
}

// Stats summarises the dataset on disk.
type Stats struct {
	Partitions map[Partition]PartitionStats `json:"partitions"`
}

// Total returns the sum over all partitions.
func (s Stats) Total() PartitionStats {
	var t PartitionStats
	for _, p := range s.Partitions {
		t.Slots += p.Slots
		t.Images += p.Images
		t.Bytes += p.Bytes
	}
	return t
}

// CollectStats walks every partition and counts slots, images and bytes.
func CollectStats(layout Layout) (Stats, error) {
	stats := Stats{Partitions: make(map[Partition]PartitionStats, 3)}

	for _, p := range Partitions() {
		ids, err := layout.SlotIDs(p)
		if err != nil {
			return stats, err
		}

		var ps PartitionStats
		for _, id := range ids {
			slot := layout.Slot(p, id)
			indices, err := slot.Indices()
			if err != nil {
				return stats, err
			}
			if len(indices) == 0 {
				continue
			}
			ps.Slots++
			for _, i := range indices {
				info, err := os.Stat(slot.Path(i))
				if err != nil {
					continue
				}
				ps.Images++
				ps.Bytes += info.Size()
			}
		}
		stats.Partitions[p] = ps
	}
	return stats, nil
}

// Labels returns the sorted slot names of the train partition. A card's
// label is its position in this list.
func Labels(layout Layout) ([]string, error) {
	return layout.SlotIDs(Train)
}

// WriteLabelMapping writes {"<label>": "<card-id>"} to label_mapping.json.
func WriteLabelMapping(layout Layout, labels []string) error {
	mapping := make(map[string]string, len(labels))
	for i, l := range labels {
		mapping[strconv.Itoa(i)] = l
	}

	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return err
	}
	return ioutils.WriteFileAtomic(filepath.Join(layout.Root(), LabelMappingFile), data)
}

type infoFeature struct {
	Name  string `yaml:"name"`
	Dtype any    `yaml:"dtype"`
}

type infoSplit struct {
	Name        string `yaml:"name"`
	NumBytes    int64  `yaml:"num_bytes"`
	NumExamples int    `yaml:"num_examples"`
}

type datasetInfo struct {
	Features     []infoFeature `yaml:"features"`
	Splits       []infoSplit   `yaml:"splits"`
	DownloadSize int64         `yaml:"download_size"`
	DatasetSize  int64         `yaml:"dataset_size"`
}

// WriteDatasetInfo writes the dataset card metadata (features, splits and
// sizes) to dataset_info.yaml.
func WriteDatasetInfo(layout Layout, stats Stats, labels []string) error {
	names := make(map[string]string, min(len(labels), maxInfoLabels))
	for i, l := range labels {
		if i >= maxInfoLabels {
			break
		}
		names[strconv.Itoa(i)] = l
	}

	info := datasetInfo{
		Features: []infoFeature{
			{Name: "image", Dtype: "image"},
			{Name: "label", Dtype: map[string]any{
				"class_label": map[string]any{"names": names},
			}},
		},
	}

	for _, p := range Partitions() {
		ps := stats.Partitions[p]
		if ps.Images == 0 {
			continue
		}
		info.Splits = append(info.Splits, infoSplit{
			Name:        string(p),
			NumBytes:    ps.Bytes,
			NumExamples: ps.Images,
		})
	}
	total := stats.Total().Bytes
	info.DownloadSize = total
	info.DatasetSize = total

	data, err := yaml.Marshal(map[string]any{"dataset_info": info})
	if err != nil {
		return fmt.Errorf("encode dataset info: %w", err)
	}
	return ioutils.WriteFileAtomic(filepath.Join(layout.Root(), DatasetInfoFile), data)
}
