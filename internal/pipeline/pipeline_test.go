package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/handiism/tcg-dataset/internal/catalog"
	"github.com/handiism/tcg-dataset/internal/config"
	"github.com/handiism/tcg-dataset/internal/dataset"
	"github.com/handiism/tcg-dataset/internal/export"
	ioutils "github.com/handiism/tcg-dataset/internal/io"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/handiism/tcg-dataset/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 40
	testHeight = 56
)

// fakeAPI serves a Scryfall-style search result with n cards and the PNGs
// they point to. Image requests for ids in broken answer 500.
type fakeAPI struct {
	srv        *httptest.Server
	n          int
	broken     map[string]bool
	imageCalls atomic.Int32
}

func newFakeAPI(t *testing.T, n int) *fakeAPI {
	t.Helper()

	var png bytes.Buffer
	img := imaging.New(80, 112, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	rng := rand.New(rand.NewPCG(80, 112))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+2] = uint8(rng.UintN(256))
	}
	require.NoError(t, imaging.Encode(&png, img, imaging.PNG))

	api := &fakeAPI{n: n, broken: map[string]bool{}}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cards/search":
			type uris struct {
				PNG string `json:"png"`
			}
			type card struct {
				ID        string `json:"id"`
				Name      string `json:"name"`
				ImageURIs uris   `json:"image_uris"`
			}
			list := struct {
				Object  string `json:"object"`
				HasMore bool   `json:"has_more"`
				Data    []card `json:"data"`
			}{Object: "list"}
			for i := 0; i < api.n; i++ {
				id := fmt.Sprintf("card-%02d", i)
				list.Data = append(list.Data, card{
					ID:        id,
					Name:      "Card " + id,
					ImageURIs: uris{PNG: api.srv.URL + "/img/" + id + ".png"},
				})
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(list)
		case strings.HasPrefix(r.URL.Path, "/img/"):
			api.imageCalls.Add(1)
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/img/"), ".png")
			if api.broken[id] || api.broken["*"] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write(png.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.srv.Close)
	return api
}

func testSettings(root string) *config.Settings {
	s := config.DefaultSettings()
	s.Output.Root = root
	s.Catalog.Selector = "mtg:set:lea"
	s.Catalog.RateLimit = 0
	s.Catalog.Timeout = 5 * time.Second
	s.Catalog.Retry = config.Retry{Attempts: 1}
	s.Image.Width = testWidth
	s.Image.Height = testHeight
	s.Image.FetchTimeout = 5 * time.Second
	s.Workers = 2
	s.Augment.Seed = 7
	return s
}

func newPipeline(api *fakeAPI, s *config.Settings, opts ...Option) *Pipeline {
	opts = append([]Option{WithEndpoints(catalog.Endpoints{Scryfall: api.srv.URL})}, opts...)
	return New(s, nil, opts...)
}

func run(t *testing.T, p *Pipeline) (*Summary, error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.Initialize(ctx))
	return p.Run(ctx)
}

func TestEndToEndCappedCatalog(t *testing.T) {
	api := newFakeAPI(t, 10)
	s := testSettings(t.TempDir())
	s.Catalog.MaxCards = 5

	summary, err := run(t, newPipeline(api, s))
	require.NoError(t, err)

	layout := dataset.NewLayout(s.Output.Root)
	ids, err := layout.SlotIDs(dataset.Train)
	require.NoError(t, err)
	assert.Equal(t, []string{"card-00", "card-01", "card-02", "card-03", "card-04"}, ids)

	images := ioutils.NewImageService(testWidth, testHeight, 90)
	for _, id := range ids {
		w, h, err := images.Dimensions(layout.Slot(dataset.Train, id).PrimaryPath())
		require.NoError(t, err)
		assert.Equal(t, testWidth, w)
		assert.Equal(t, testHeight, h)
	}

	dl := summary.Report(model.StageDownload)
	require.NotNil(t, dl)
	assert.Equal(t, 5, dl.Succeeded)
	assert.Equal(t, 0, dl.Failed())
	assert.Equal(t, 5, summary.Catalog)
	assert.Equal(t, 5, summary.Pending)
	assert.False(t, summary.TotalFailure())

	assert.FileExists(t, filepath.Join(s.Output.Root, dataset.LabelMappingFile))
	assert.FileExists(t, filepath.Join(s.Output.Root, dataset.DatasetInfoFile))
	assert.Equal(t, 5, summary.Stats.Partitions[dataset.Train].Slots)
}

func TestRerunOnlyDownloadsMissing(t *testing.T) {
	api := newFakeAPI(t, 4)
	s := testSettings(t.TempDir())

	_, err := run(t, newPipeline(api, s))
	require.NoError(t, err)
	assert.EqualValues(t, 4, api.imageCalls.Load())

	layout := dataset.NewLayout(s.Output.Root)
	require.NoError(t, os.RemoveAll(layout.Slot(dataset.Train, "card-02").Dir))

	p := newPipeline(api, s)
	summary, err := run(t, p)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Present)
	require.Len(t, p.Pending(), 1)
	assert.Equal(t, "card-02", p.Pending()[0].ID)
	assert.EqualValues(t, 5, api.imageCalls.Load())
	assert.True(t, layout.Slot(dataset.Train, "card-02").HasPrimary())
}

func TestPartialFailureIsNotFatal(t *testing.T) {
	api := newFakeAPI(t, 4)
	api.broken["card-01"] = true

	summary, err := run(t, newPipeline(api, testSettings(t.TempDir())))
	require.NoError(t, err)

	dl := summary.Report(model.StageDownload)
	assert.Equal(t, 3, dl.Succeeded)
	require.Len(t, dl.Failures, 1)
	assert.Equal(t, "card-01", dl.Failures[0].CardID)
	assert.Equal(t, model.StageFetch, dl.Failures[0].Stage)
}

func TestTotalFailure(t *testing.T) {
	api := newFakeAPI(t, 3)
	api.broken["*"] = true

	summary, err := run(t, newPipeline(api, testSettings(t.TempDir())))
	assert.ErrorIs(t, err, ErrTotalFailure)
	require.NotNil(t, summary)
	assert.Len(t, summary.Failures(), 3)
}

func TestInitializeUnknownSelector(t *testing.T) {
	api := newFakeAPI(t, 1)
	s := testSettings(t.TempDir())
	s.Catalog.Selector = "pokemon"

	p := newPipeline(api, s)
	err := p.Initialize(context.Background())
	assert.ErrorIs(t, err, catalog.ErrUnknownSelector)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitializeCatalogUnavailable(t *testing.T) {
	api := newFakeAPI(t, 1)
	api.srv.Close()

	err := newPipeline(api, testSettings(t.TempDir())).Initialize(context.Background())
	assert.ErrorIs(t, err, catalog.ErrSourceUnavailable)
}

type memStore struct {
	mu   sync.Mutex
	keys []string
}

func (m *memStore) Upload(_ context.Context, key, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func TestFullRunWithSplitAugmentExportPublish(t *testing.T) {
	api := newFakeAPI(t, 5)
	s := testSettings(t.TempDir())
	s.Split.Mode = dataset.SplitEvery
	s.Split.TestEvery = 2
	s.Augment.Enabled = true
	s.Augment.Amount = 2
	s.Augment.Verify = true
	s.Export.Parquet = true
	s.Publish.Enabled = true
	s.Publish.Bucket = "datasets"
	s.Publish.Prefix = "lea"

	store := &memStore{}
	var events atomic.Int32
	p := New(s, func(progress.Event) { events.Add(1) },
		WithEndpoints(catalog.Endpoints{Scryfall: api.srv.URL}),
		WithObjectStore(store))

	summary, err := run(t, p)
	require.NoError(t, err)

	layout := dataset.NewLayout(s.Output.Root)
	for _, id := range []string{"card-00", "card-01", "card-02", "card-03", "card-04"} {
		indices, err := layout.Slot(dataset.Train, id).Indices()
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, indices, id)
	}

	testIDs, err := layout.SlotIDs(dataset.Test)
	require.NoError(t, err)
	assert.Equal(t, []string{"card-01", "card-03"}, testIDs)

	assert.Equal(t, 10, summary.Augment.Generated)
	assert.Equal(t, 10, summary.Augment.Verified)
	assert.Equal(t, int64(7), summary.AugmentSeed)
	assert.Equal(t, 2, summary.Report(model.StageSplit).Succeeded)
	assert.Equal(t, 2, summary.Shards)

	assert.Len(t, store.keys, 21)
	assert.Contains(t, store.keys, "lea/"+dataset.LabelMappingFile)
	assert.Contains(t, store.keys, "lea/"+export.ParquetDir+"/train-00000-of-00001.parquet")
	assert.Greater(t, events.Load(), int32(0))
}

func TestRunCancelled(t *testing.T) {
	api := newFakeAPI(t, 3)
	p := newPipeline(api, testSettings(t.TempDir()))
	require.NoError(t, p.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
