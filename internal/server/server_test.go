package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viniciusth/rankindex"
	"github.com/viniciusth/rankindex/internal/cache"
	"github.com/viniciusth/rankindex/internal/metrics"
)

type mapBackend map[string]string

func (b mapBackend) Get(_ context.Context, key string) (string, error) {
	v, ok := b[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (b mapBackend) Set(_ context.Context, key string, value string, _ time.Duration) error {
	b[key] = value
	return nil
}

type failingSearcher struct{}

func (failingSearcher) Search([]byte) ([]int, error) { return nil, errors.New("index corrupted") }
func (failingSearcher) SearchWithWildcards([]byte) ([]int, error) {
	return nil, errors.New("index corrupted")
}

func newTestServer(t *testing.T, queryCache *cache.QueryCache) *httptest.Server {
	t.Helper()
	ix, err := rankindex.Build([]byte("abracadabra"))
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	h := New(metrics.Instrument(ix, metrics.New(reg)), queryCache)
	srv := httptest.NewServer(h.Routes(metrics.Handler(reg)))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, params url.Values) (*http.Response, SearchResult) {
	t.Helper()
	resp, err := http.Get(srv.URL + path + "?" + params.Encode())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var result SearchResult
	if resp.StatusCode == http.StatusOK && path == "/api/v1/search" {
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatal(err)
		}
	}
	return resp, result
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	tests := []struct {
		name     string
		params   url.Values
		status   int
		expected []int
	}{
		{"exact", url.Values{"q": {"abra"}}, http.StatusOK, []int{0, 7}},
		{"explicit exact", url.Values{"q": {"a"}, "mode": {"exact"}}, http.StatusOK, []int{0, 3, 5, 7, 10}},
		{"wildcard", url.Values{"q": {"a?a"}, "mode": {"wildcard"}}, http.StatusOK, []int{3, 5}},
		{"no match", url.Values{"q": {"zz"}}, http.StatusOK, []int{}},
		{"missing q", url.Values{}, http.StatusBadRequest, nil},
		{"bad mode", url.Values{"q": {"a"}, "mode": {"regex"}}, http.StatusBadRequest, nil},
		{"too long", url.Values{"q": {"abracadabra!"}}, http.StatusBadRequest, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, result := get(t, srv, "/api/v1/search", tc.params)
			if resp.StatusCode != tc.status {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.status)
			}
			if tc.status != http.StatusOK {
				return
			}
			if !slices.Equal(result.Positions, tc.expected) || result.Count != len(tc.expected) {
				t.Errorf("got %+v, want positions %v", result, tc.expected)
			}
		})
	}
}

func TestSearchUsesCache(t *testing.T) {
	backend := mapBackend{}
	srv := newTestServer(t, cache.New(backend, "test", time.Minute))

	params := url.Values{"q": {"bra"}}
	_, first := get(t, srv, "/api/v1/search", params)
	_, second := get(t, srv, "/api/v1/search", params)
	if first.Cached || !second.Cached {
		t.Errorf("cached flags %v, %v; want false, true", first.Cached, second.Cached)
	}
	if !slices.Equal(second.Positions, []int{1, 8}) {
		t.Errorf("cached positions %v", second.Positions)
	}
	if len(backend) != 1 {
		t.Errorf("backend holds %d keys, want 1", len(backend))
	}
}

func TestSearchInternalError(t *testing.T) {
	srv := httptest.NewServer(New(failingSearcher{}, nil).Routes(nil))
	defer srv.Close()
	resp, _ := get(t, srv, "/api/v1/search", url.Values{"q": {"a"}})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status %d, want 500", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, _ := get(t, srv, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthPingsRedis(t *testing.T) {
	ix, err := rankindex.Build([]byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		ping   error
		status int
		redis  string
	}{
		{"reachable", nil, http.StatusOK, "ok"},
		{"unreachable", errors.New("connection refused"), http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			h := New(ix, nil).WithRedis(pingFunc(func(context.Context) error {
				calls++
				return tc.ping
			}))
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest("GET", "/healthz", nil))
			if rec.Code != tc.status {
				t.Errorf("status %d, want %d", rec.Code, tc.status)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["redis"] != tc.redis || calls != 1 {
				t.Errorf("body %v after %d pings, want redis=%s after 1", body, calls, tc.redis)
			}
		})
	}
}
