package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/handiism/tcg-dataset/internal/dataset"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/progress"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"
)

// ObjectStore is the subset of an S3 client the publisher needs.
type ObjectStore interface {
	Upload(ctx context.Context, key, file, contentType string) error
}

// PublishOptions configures the bucket a dataset is mirrored to.
type PublishOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// MinioStore uploads files to an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the endpoint and creates the bucket when it does
// not exist yet.
func NewMinioStore(ctx context.Context, opts PublishOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

// Upload copies a local file to key.
func (s *MinioStore) Upload(ctx context.Context, key, file, contentType string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, file, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Publisher mirrors a dataset root into an object store.
type Publisher struct {
	store    ObjectStore
	prefix   string
	workers  int
	reporter *progress.Reporter
}

// NewPublisher creates a publisher writing keys under prefix.
func NewPublisher(store ObjectStore, prefix string, workers int, reporter *progress.Reporter) *Publisher {
	if workers <= 0 {
		workers = 4
	}
	if reporter == nil {
		reporter = progress.NewReporter(nil)
	}
	return &Publisher{
		store:    store,
		prefix:   strings.Trim(prefix, "/"),
		workers:  workers,
		reporter: reporter,
	}
}

// ObjectKey maps a path relative to the dataset root to its bucket key.
func ObjectKey(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// Files lists what a publish uploads: every image under data/, the parquet
// shards and the metadata files. Paths are relative to the root and sorted.
// Temporary files left by interrupted writes are skipped.
func Files(layout dataset.Layout) ([]string, error) {
	root := layout.Root()
	var files []string

	for _, dir := range []string{layout.DataDir(), filepath.Join(root, ParquetDir)} {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == dir && errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || isTemp(d.Name()) {
				return nil
			}
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			files = append(files, rel)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for _, name := range []string{dataset.LabelMappingFile, dataset.DatasetInfoFile} {
		if ioutils.FileExists(filepath.Join(root, name)) {
			files = append(files, name)
		}
	}
	return files, nil
}

// Publish uploads every file of the dataset. Individual upload failures are
// recorded in the report; only cancellation aborts the run.
func (p *Publisher) Publish(ctx context.Context, layout dataset.Layout) (*model.Report, error) {
	files, err := Files(layout)
	if err != nil {
		return nil, err
	}

	report := &model.Report{Stage: model.StagePublish, Total: len(files)}
	failures := make([]*model.TaskFailure, len(files))
	p.reporter.Start(model.StagePublish, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, rel := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			key := ObjectKey(p.prefix, rel)
			err := p.store.Upload(gctx, key, filepath.Join(layout.Root(), rel), contentType(rel))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				f := model.Failed(rel, model.StagePublish, err)
				failures[i] = &f
				p.reporter.Fail(f)
				return nil
			}
			p.reporter.Complete("")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, f := range failures {
		if f != nil {
			report.Fail(*f)
		}
	}
	report.Succeeded = report.Total - report.Failed()

	zlog.Logger.Info().
		Str("prefix", p.prefix).
		Int("uploaded", report.Succeeded).
		Int("failed", report.Failed()).
		Msg("published dataset")
	return report, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}
