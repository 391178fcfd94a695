package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tcghttp "github.com/handiism/tcg-dataset/internal/http"
	"github.com/handiism/tcg-dataset/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func testClient() *tcghttp.Client {
	return tcghttp.NewClient(tcghttp.Options{
		UserAgent: "TCGFetch-test",
		Timeout:   5 * time.Second,
		Retry:     retry.Strategy{Attempts: 2, Delay: time.Millisecond, Backoff: 1},
	})
}

// staticSource serves pre-built pages; failAt makes that page fail.
type staticSource struct {
	pages  [][]model.Card
	failAt int
	err    error
	calls  int
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) FetchPage(_ context.Context, cursor string) (Page, error) {
	i := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &i)
	}
	s.calls++
	if s.err != nil && i == s.failAt {
		return Page{}, s.err
	}
	p := Page{Cards: s.pages[i]}
	if i+1 < len(s.pages) {
		p.Next = fmt.Sprint(i + 1)
	}
	return p, nil
}

func card(id string) model.Card {
	return model.NewCard(id, "https://img.example/"+id+".png", nil)
}

func ids(cards []model.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestFetchConcatenatesAndDedupes(t *testing.T) {
	src := &staticSource{pages: [][]model.Card{
		{card("a"), card("b")},
		{card("c"), card("a")},
		{card("d"), card("b")},
	}}

	cards, err := NewFetcher(src, nil, false).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(cards))
	assert.Equal(t, 3, src.calls)
}

func TestFetchKeepsFirstOccurrence(t *testing.T) {
	first := model.NewCard("a", "https://img.example/first.png", nil)
	second := model.NewCard("a", "https://img.example/second.png", nil)
	src := &staticSource{pages: [][]model.Card{{first}, {second}}}

	cards, err := NewFetcher(src, nil, false).Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "https://img.example/first.png", cards[0].ImageURL)
}

func TestFetchAppliesCapAfterDedupe(t *testing.T) {
	src := &staticSource{pages: [][]model.Card{{card("a"), card("a"), card("b"), card("c")}}}

	cards, err := NewFetcher(src, nil, false).Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(cards))
}

func TestFetchPageFailureAbortsWholeFetch(t *testing.T) {
	src := &staticSource{
		pages:  [][]model.Card{{card("a")}, {card("b")}, {card("c")}},
		failAt: 1,
		err:    errors.New("connection reset"),
	}

	cards, err := NewFetcher(src, nil, false).Fetch(context.Background(), 0)
	assert.Nil(t, cards)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFetchUsesCache(t *testing.T) {
	cache := NewCache(t.TempDir())
	src := &staticSource{pages: [][]model.Card{{card("a"), card("b")}}}

	_, err := NewFetcher(src, cache, false).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.FileExists(t, cache.Path("static"))

	src.err, src.failAt = errors.New("offline"), 0
	cards, err := NewFetcher(src, cache, false).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(cards))

	_, err = NewFetcher(src, cache, true).Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestNewSource(t *testing.T) {
	client := testClient()

	tests := []struct {
		selector string
		name     string
		wantErr  bool
	}{
		{"mtg", "mtg", false},
		{"MTG", "mtg", false},
		{"mtg:set:lea", "mtg_set-lea", false},
		{"ga", "ga", false},
		{"ga:foo", "", true},
		{"pokemon", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			src, err := NewSource(tt.selector, client, DefaultEndpoints())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownSelector)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, src.Name())
		})
	}
}

func TestScryfallBulk(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/bulk-data", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[
			{"type":"oracle_cards","download_uri":"%[1]s/oracle.json"},
			{"type":"all_cards","download_uri":"%[1]s/all.json"}]}`, srv.URL)
	})
	mux.HandleFunc("/all.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"1","name":"Black Lotus","image_uris":{"png":"https://cards.scryfall.io/png/1.png"}},
			{"id":"2","name":"Delver of Secrets","layout":"transform","card_faces":[{}]},
			{"id":"3","name":"Upcoming","image_uris":{"png":"https://errors.scryfall.com/soon.jpg"}}
		]`))
	})

	src := NewScryfallBulk(testClient(), srv.URL)
	cards, err := NewFetcher(src, nil, false).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ids(cards))
	assert.Contains(t, string(cards[0].Metadata), "Black Lotus")
	assert.True(t, IsPlaceholder(cards[1]))
}

func TestScryfallBulkMissingType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := NewFetcher(NewScryfallBulk(testClient(), srv.URL), nil, false).Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMalformedCatalog)
}

func TestScryfallSearchPaginates(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			assert.Equal(t, "set:lea", r.URL.Query().Get("q"))
			fmt.Fprintf(w, `{"object":"list","has_more":true,"next_page":"%s/cards/search?page=2",
				"data":[{"id":"a","image_uris":{"png":"https://img/a.png"}}]}`, srvURL)
		case "2":
			w.Write([]byte(`{"object":"list","has_more":false,
				"data":[{"id":"b","image_uris":{"png":"https://img/b.png"}}]}`))
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	cards, err := NewFetcher(NewScryfallSearch(testClient(), srv.URL, "set:lea"), nil, false).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(cards))
}

func TestScryfallSearchMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[{"id":`))
	}))
	defer srv.Close()

	_, err := NewFetcher(NewScryfallSearch(testClient(), srv.URL, "x"), nil, false).Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMalformedCatalog)
}

func TestScryfallSearchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewFetcher(NewScryfallSearch(testClient(), srv.URL, "x"), nil, false).Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMalformedCatalog)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestScryfallSearchDroppedConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	_, err := NewFetcher(NewScryfallSearch(testClient(), srv.URL, "x"), nil, false).Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.NotErrorIs(t, err, ErrMalformedCatalog)
}

func TestGrandArchive(t *testing.T) {
	var details atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cards/all":
			w.Write([]byte(`[{"name":"Lorraine","slug":"lorraine"},{"name":"Silvie","slug":"silvie"}]`))
		case strings.HasPrefix(r.URL.Path, "/cards/"):
			details.Add(1)
			slug := strings.TrimPrefix(r.URL.Path, "/cards/")
			fmt.Fprintf(w, `{"name":%q,"editions":[
				{"slug":"%[2]s-doa","image":"/cards/images/%[2]s-doa.jpg"},
				{"slug":"%[2]s-alc","image":"/cards/images/%[2]s-alc.jpg"}]}`, slug, slug)
		}
	}))
	defer srv.Close()

	cards, err := NewFetcher(NewGrandArchive(testClient(), srv.URL), nil, false).Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"lorraine-doa", "lorraine-alc", "silvie-doa", "silvie-alc"}, ids(cards))
	assert.Equal(t, srv.URL+"/cards/images/lorraine-doa.jpg", cards[0].ImageURL)
	assert.Equal(t, int32(2), details.Load())
}

func TestGrandArchiveDetailFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cards/all":
			w.Write([]byte(`[{"slug":"ok"},{"slug":"broken"}]`))
		case "/cards/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"editions":[{"slug":"ok-1","image":"/x.jpg"}]}`))
		}
	}))
	defer srv.Close()

	cards, err := NewFetcher(NewGrandArchive(testClient(), srv.URL), nil, false).Fetch(context.Background(), 0)
	assert.Nil(t, cards)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
