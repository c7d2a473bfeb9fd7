package schema

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gqlembed/internal/logging"

	"github.com/vektah/gqlparser/v2/ast"
)

const helloIntrospection = `{
  "data": {
    "__schema": {
      "queryType": {"name": "Query"},
      "mutationType": null,
      "subscriptionType": null,
      "types": [
        {"kind": "OBJECT", "name": "Query", "fields": [
          {"name": "hello", "args": [], "type": {"kind": "NON_NULL", "name": null, "ofType": {"kind": "SCALAR", "name": "String", "ofType": null}}, "isDeprecated": false},
          {"name": "node", "args": [{"name": "id", "type": {"kind": "NON_NULL", "name": null, "ofType": {"kind": "SCALAR", "name": "ID", "ofType": null}}}], "type": {"kind": "INTERFACE", "name": "Node", "ofType": null}, "isDeprecated": false}
        ], "interfaces": []},
        {"kind": "INTERFACE", "name": "Node", "fields": [
          {"name": "id", "args": [], "type": {"kind": "NON_NULL", "name": null, "ofType": {"kind": "SCALAR", "name": "ID", "ofType": null}}, "isDeprecated": false}
        ], "possibleTypes": [{"kind": "OBJECT", "name": "User", "ofType": null}]},
        {"kind": "OBJECT", "name": "User", "fields": [
          {"name": "id", "args": [], "type": {"kind": "NON_NULL", "name": null, "ofType": {"kind": "SCALAR", "name": "ID", "ofType": null}}, "isDeprecated": false},
          {"name": "when", "args": [], "type": {"kind": "SCALAR", "name": "DateTime", "ofType": null}, "isDeprecated": true, "deprecationReason": "use at"}
        ], "interfaces": [{"kind": "INTERFACE", "name": "Node", "ofType": null}]},
        {"kind": "SCALAR", "name": "DateTime"},
        {"kind": "SCALAR", "name": "String"},
        {"kind": "SCALAR", "name": "ID"},
        {"kind": "OBJECT", "name": "__Schema", "fields": []}
      ],
      "directives": [
        {"name": "skip", "locations": ["FIELD"], "args": [{"name": "if", "type": {"kind": "NON_NULL", "name": null, "ofType": {"kind": "SCALAR", "name": "Boolean", "ofType": null}}}]}
      ]
    }
  }
}`

func newTestManager(cfg Config, opts ...Option) *Manager {
	return NewManager(cfg, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func TestLoadIntrospectionBuildsSchema(t *testing.T) {
	sch, sdl, err := LoadIntrospection("remote", []byte(helloIntrospection))
	if err != nil {
		t.Fatalf("LoadIntrospection: %v", err)
	}
	if strings.Contains(sdl, "__Schema") || strings.Contains(sdl, "scalar String") {
		t.Fatalf("builtins leaked into SDL:\n%s", sdl)
	}
	if !strings.Contains(sdl, `@deprecated(reason: "use at")`) {
		t.Fatalf("deprecation lost:\n%s", sdl)
	}
	snap := &Snapshot{Schema: sch}
	f := snap.Field("Query", "hello")
	if f == nil || f.Type.String() != "String!" {
		t.Fatalf("Query.hello = %+v", f)
	}
	if got := snap.PossibleTypes(snap.Type("Node")); len(got) != 1 || got[0].Name != "User" {
		t.Fatalf("PossibleTypes(Node) = %v", got)
	}
	if snap.Field("User", "__typename") == nil {
		t.Fatalf("__typename must resolve on every composite type")
	}
	if snap.RootType(ast.Mutation) != nil {
		t.Fatalf("no mutation root expected")
	}
}

func TestDecodeIntrospectionBareAndErrors(t *testing.T) {
	if _, err := DecodeIntrospection([]byte(`{"__schema": {"queryType": {"name": "Q"}, "types": []}}`)); err != nil {
		t.Fatalf("bare __schema: %v", err)
	}
	if _, err := DecodeIntrospection([]byte(`{"errors": [{"message": "denied"}]}`)); err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("expected error with server message, got %v", err)
	}
	if _, err := DecodeIntrospection([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestManagerLocalSDL(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte("type Query { hello: String! }\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m := newTestManager(Config{File: "schema.graphql", BaseDir: dir})
	if m.Current() != nil {
		t.Fatalf("snapshot must not exist before Acquire")
	}
	s1, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s1.Source != SourceLocal || s1.Field("Query", "hello") == nil {
		t.Fatalf("unexpected snapshot %+v", s1)
	}
	s2, err := m.Acquire(context.Background())
	if err != nil || s2 != s1 {
		t.Fatalf("Acquire must be idempotent")
	}
}

func TestManagerLocalErrors(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(Config{File: "missing.graphql", BaseDir: dir})
	_, err := m.Acquire(context.Background())
	var acq *AcquisitionError
	if !errors.As(err, &acq) || acq.Source != SourceLocal {
		t.Fatalf("expected local AcquisitionError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cause must unwrap to ErrNotExist: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.graphql"), []byte("type Query {"), 0o600); err != nil {
		t.Fatal(err)
	}
	m = newTestManager(Config{File: "bad.graphql", BaseDir: dir})
	if _, err := m.Acquire(context.Background()); !errors.As(err, &acq) {
		t.Fatalf("expected AcquisitionError for invalid SDL, got %v", err)
	}
	if m.Current() != nil {
		t.Fatalf("failed acquisition must not publish a snapshot")
	}
}

func TestManagerRemoteHeadersAndRefresh(t *testing.T) {
	t.Setenv("GQLEMBED_TEST_TOKEN", "s3cret")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "__schema") {
			t.Errorf("request is not an introspection query: %s", body)
		}
		_, _ = w.Write([]byte(helloIntrospection))
	}))
	defer srv.Close()

	m := newTestManager(Config{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer ${GQLEMBED_TEST_TOKEN}"},
	}, WithHTTPClient(srv.Client()))
	s1, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s1.Source != SourceRemote || s1.Origin != srv.URL {
		t.Fatalf("unexpected snapshot origin %v %q", s1.Source, s1.Origin)
	}
	s2, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s2 == s1 || m.Current() != s2 {
		t.Fatalf("Refresh must publish a new snapshot")
	}
	if s2.Digest != s1.Digest {
		t.Fatalf("same schema must keep its digest")
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", hits.Load())
	}
}

func TestManagerRemoteGET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.Contains(r.URL.Query().Get("query"), "__schema") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(helloIntrospection))
	}))
	defer srv.Close()

	m := newTestManager(Config{URL: srv.URL, Method: "get"}, WithHTTPClient(srv.Client()))
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
}

func TestManagerRemoteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := newTestManager(Config{URL: srv.URL}, WithHTTPClient(srv.Client()))
	_, err := m.Acquire(context.Background())
	var acq *AcquisitionError
	if !errors.As(err, &acq) {
		t.Fatalf("expected AcquisitionError, got %v", err)
	}
	if acq.StatusCode != http.StatusUnauthorized || acq.Source != SourceRemote {
		t.Fatalf("unexpected error fields %+v", acq)
	}
}

func TestManagerRefreshFailureKeepsSnapshot(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(helloIntrospection))
	}))
	defer srv.Close()

	m := newTestManager(Config{URL: srv.URL}, WithHTTPClient(srv.Client()))
	s1, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	fail.Store(true)
	if _, err := m.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if m.Current() != s1 {
		t.Fatalf("previous snapshot must stay published")
	}
}

func TestManagerDiskCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(helloIntrospection))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	cfg := Config{URL: srv.URL, CacheDir: cacheDir}
	if _, err := newTestManager(cfg, WithHTTPClient(srv.Client())).Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	s, err := newTestManager(cfg, WithHTTPClient(srv.Client())).Acquire(context.Background())
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("second manager must hit the disk cache, server saw %d requests", hits.Load())
	}
	if s.Field("Query", "hello") == nil {
		t.Fatalf("cached schema incomplete")
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := CacheKey("http://x", "POST", map[string]string{"A": "1", "B": "2"})
	b := CacheKey("http://x", "POST", map[string]string{"B": "2", "A": "1"})
	if a != b {
		t.Fatalf("header order must not change the key")
	}
	if a == CacheKey("http://x", "GET", map[string]string{"A": "1", "B": "2"}) {
		t.Fatalf("method must change the key")
	}
}

func TestManagerClearCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(helloIntrospection))
	}))
	defer srv.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := Config{URL: srv.URL, CacheDir: t.TempDir()}
	first := newTestManager(cfg, WithHTTPClient(srv.Client()), WithClock(func() time.Time { return at }))
	s, err := first.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !s.LoadedAt.Equal(at) {
		t.Fatalf("LoadedAt = %v, want %v", s.LoadedAt, at)
	}
	if err := first.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if _, err := newTestManager(cfg, WithHTTPClient(srv.Client())).Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after clear: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("cleared cache must force a refetch, server saw %d requests", hits.Load())
	}
	if err := newTestManager(Config{File: "schema.graphql"}).ClearCache(); err != nil {
		t.Fatalf("ClearCache without cache dir: %v", err)
	}
}
