package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/handiism/tcg-dataset/internal/dataset"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/progress"
	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// ParquetDir is the directory under the dataset root holding shards.
const ParquetDir = "parquet"

// DefaultShardSizeMB is the target size of one shard.
const DefaultShardSizeMB = 420

// ImageCell is the image column: the encoded file and its path relative to
// the partition, "<card-id>/<NNNN>.jpg".
type ImageCell struct {
	Bytes string `parquet:"name=bytes, type=BYTE_ARRAY"`
	Path  string `parquet:"name=path, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Row is one example in a shard.
type Row struct {
	Image ImageCell `parquet:"name=image"`
	Label int64     `parquet:"name=label, type=INT64"`
}

// item is an image scheduled for export.
type item struct {
	slot  dataset.Slot
	index int
	label int
	size  int64
}

// Result describes what an export wrote.
type Result struct {
	Shards []string
	Rows   map[dataset.Partition]int
}

// ParquetExporter writes every partition as contiguous parquet shards named
// <split>-XXXXX-of-YYYYY.parquet.
type ParquetExporter struct {
	layout     dataset.Layout
	shardBytes int64
	reporter   *progress.Reporter
}

// NewParquetExporter creates an exporter targeting shardSizeMB per shard.
func NewParquetExporter(layout dataset.Layout, shardSizeMB int, reporter *progress.Reporter) *ParquetExporter {
	if shardSizeMB <= 0 {
		shardSizeMB = DefaultShardSizeMB
	}
	if reporter == nil {
		reporter = progress.NewReporter(nil)
	}
	return &ParquetExporter{
		layout:     layout,
		shardBytes: int64(shardSizeMB) * 1024 * 1024,
		reporter:   reporter,
	}
}

// ShardName returns the file name of shard i of n.
func ShardName(split dataset.Partition, i, n int) string {
	return fmt.Sprintf("%s-%05d-of-%05d.parquet", split, i, n)
}

// ShardCount returns how many shards of at most target bytes hold total
// bytes. It is at least one.
func ShardCount(total, target int64) int {
	if target <= 0 || total <= target {
		return 1
	}
	n := total / target
	if total%target != 0 {
		n++
	}
	return int(n)
}

// Export writes the shards of every non-empty partition. labels maps slot
// IDs to class labels; slots missing from it are skipped.
func (x *ParquetExporter) Export(ctx context.Context, labels []string) (*Result, error) {
	labelOf := make(map[string]int, len(labels))
	for i, l := range labels {
		labelOf[l] = i
	}

	res := &Result{Rows: make(map[dataset.Partition]int, 3)}
	outDir := filepath.Join(x.layout.Root(), ParquetDir)
	if err := ioutils.EnsureDir(outDir); err != nil {
		return nil, err
	}

	for _, p := range dataset.Partitions() {
		items, total, err := x.collect(p, labelOf)
		if err != nil {
			return res, err
		}
		if len(items) == 0 {
			continue
		}

		n := ShardCount(total, x.shardBytes)
		x.reporter.Start(model.StageExport, n)

		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			chunk := items[i*len(items)/n : (i+1)*len(items)/n]
			path := filepath.Join(outDir, ShardName(p, i, n))
			if err := writeShard(path, chunk); err != nil {
				x.reporter.Fail(model.Failed(string(p), model.StageExport, err))
				return res, fmt.Errorf("write %s: %w", filepath.Base(path), err)
			}

			res.Shards = append(res.Shards, path)
			res.Rows[p] += len(chunk)
			x.reporter.Complete(fmt.Sprintf("Wrote %s (%d rows)", filepath.Base(path), len(chunk)))
		}
	}
	return res, nil
}

func (x *ParquetExporter) collect(p dataset.Partition, labelOf map[string]int) ([]item, int64, error) {
	ids, err := x.layout.SlotIDs(p)
	if err != nil {
		return nil, 0, err
	}

	var items []item
	var total int64
	for _, id := range ids {
		label, ok := labelOf[id]
		if !ok {
			continue
		}
		slot := x.layout.Slot(p, id)
		indices, err := slot.Indices()
		if err != nil {
			return nil, 0, err
		}
		for _, i := range indices {
			info, err := os.Stat(slot.Path(i))
			if err != nil {
				continue
			}
			items = append(items, item{slot: slot, index: i, label: label, size: info.Size()})
			total += info.Size()
		}
	}
	return items, total, nil
}

// writeShard streams rows into a temporary file and renames it into place.
func writeShard(path string, items []item) (err error) {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	pfw := writerfile.NewWriterFile(f)
	pw, err := writer.NewParquetWriter(pfw, new(Row), 4)
	if err != nil {
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, it := range items {
		data, err := os.ReadFile(it.slot.Path(it.index))
		if err != nil {
			_ = pw.WriteStop()
			return err
		}
		row := Row{
			Image: ImageCell{Bytes: string(data), Path: it.slot.RelPath(it.index)},
			Label: int64(it.label),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return err
		}
	}

	if err := pw.WriteStop(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
