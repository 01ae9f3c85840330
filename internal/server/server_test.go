package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xtxerr/blockvol/internal/cache"
	"github.com/xtxerr/blockvol/internal/errors"
	"github.com/xtxerr/blockvol/internal/series"
	"github.com/xtxerr/blockvol/internal/types"
)

// fakeCache serves both the series CacheReader and the raw RowReader roles.
type fakeCache struct {
	rows  []types.Row
	err   error
	stats cache.Stats
}

func (f *fakeCache) ReadRows(ctx context.Context, rng types.Range) ([]types.Row, error) {
	return f.rows, f.err
}

func (f *fakeCache) Stats() cache.Stats {
	return f.stats
}

func (f *fakeCache) Read(ctx context.Context, rng types.Range) ([]types.Sample, error) {
	if f.err != nil {
		return nil, f.err
	}
	samples := make([]types.Sample, 0, len(f.rows))
	for _, row := range f.rows {
		s, err := types.RowToSample(row)
		if err != nil {
			return nil, errors.NewCacheUnavailable(err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

type fakeUpstream struct {
	samples []types.Sample
	err     error
}

func (f *fakeUpstream) Fetch(ctx context.Context, rng types.Range) ([]types.Sample, error) {
	return f.samples, f.err
}

func newTestServer(cache *fakeCache, up *fakeUpstream) *Server {
	return New(Config{
		Listen: "127.0.0.1:0",
		Series: series.New(cache, up),
		Rows:   cache,
	})
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

var cacheRows = []types.Row{
	{BlockID: 1, Volume: 4, CreatedAt: "2024-01-01 00:00:00"},
	{BlockID: 2, Volume: 7, CreatedAt: "2024-01-01 00:00:15"},
}

func TestEncodedCacheHit(t *testing.T) {
	srv := newTestServer(&fakeCache{rows: cacheRows}, &fakeUpstream{})

	rec := get(t, srv, "/blocks/encoded?start=1&end=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %s", ct)
	}

	var env struct {
		IsCached bool    `json:"isCached"`
		Count    int     `json:"count"`
		Deltas   []int64 `json:"epochDeltas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !env.IsCached || env.Count != 2 || len(env.Deltas) != 1 {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestEncodedInvalidBoundsAreNot400(t *testing.T) {
	srv := newTestServer(&fakeCache{rows: cacheRows}, &fakeUpstream{})

	// Invalid bounds fall back to the default window, never a 400.
	for _, path := range []string{
		"/blocks/encoded",
		"/blocks/encoded?start=abc&end=5",
		"/blocks/encoded?start=1",
	} {
		if rec := get(t, srv, path); rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestEncodedDoubleFailure(t *testing.T) {
	srv := newTestServer(
		&fakeCache{err: errors.NewCacheUnavailable(errors.ErrInvalidConfig)},
		&fakeUpstream{err: errors.NewUpstreamUnavailable(errors.Wrap(errors.ErrInvalidRange, "chain halted"))},
	)

	rec := get(t, srv, "/blocks/encoded?start=1&end=2")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error == "" {
		t.Error("missing error field")
	}
	if !strings.Contains(body.Details, "chain halted") {
		t.Errorf("details %q lost the upstream message", body.Details)
	}
}

func TestRawRequiresBounds(t *testing.T) {
	srv := newTestServer(&fakeCache{rows: cacheRows}, &fakeUpstream{})

	for _, path := range []string{
		"/blocks",
		"/blocks?start=1",
		"/blocks?start=x&end=2",
	} {
		if rec := get(t, srv, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}

	rec := get(t, srv, "/blocks?start=1&end=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var rows []types.Row
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestRawCacheErrorHasNoFallback(t *testing.T) {
	srv := newTestServer(
		&fakeCache{err: errors.NewCacheUnavailable(errors.ErrInvalidConfig)},
		&fakeUpstream{samples: []types.Sample{{Epoch: 1, Volume: 1}}},
	)

	rec := get(t, srv, "/blocks?start=1&end=2")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(&fakeCache{rows: cacheRows}, &fakeUpstream{})

	rec := get(t, srv, "/blocks/stats?start=1&end=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var sum series.VolumeSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sum.Count != 2 || sum.Sum != 11 || !sum.IsCached {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestStatus(t *testing.T) {
	fc := &fakeCache{rows: cacheRows, stats: cache.Stats{ReadsExecuted: 3, RowsReturned: 6}}
	srv := newTestServer(fc, &fakeUpstream{})

	// A served request shows up in the series counters.
	if rec := get(t, srv, "/blocks/encoded?start=1&end=2"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec := get(t, srv, "/statusz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status struct {
		Series series.Stats `json:"series"`
		Cache  cache.Stats  `json:"cache"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Series.CacheHits != 1 {
		t.Errorf("series stats = %+v, want one cache hit", status.Series)
	}
	if status.Cache.ReadsExecuted != 3 || status.Cache.RowsReturned != 6 {
		t.Errorf("cache stats = %+v", status.Cache)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeCache{}, &fakeUpstream{})

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
