package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/zeebo/xxh3"
)

// Config selects how the schema is acquired. Exactly one of File or URL is set.
type Config struct {
	File     string
	URL      string
	Method   string
	Headers  map[string]string
	CacheDir string
	// EnvFile is loaded (without overriding the process environment) before
	// ${VAR} expansion in header values.
	EnvFile string
	// BaseDir resolves relative File, CacheDir and EnvFile paths.
	BaseDir string
}

func (c Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithHTTPClient replaces the default client; tests use httptest clients.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the current snapshot. Acquire is idempotent; only Refresh
// re-reads the source.
type Manager struct {
	cfg    Config
	client *http.Client
	log    logrus.FieldLogger
	now    func() time.Time

	mu      sync.Mutex // сериализует загрузки
	current atomic.Pointer[Snapshot]
	cache   *DiskCache
}

func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:    cfg,
		client: http.DefaultClient,
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether a schema source is set at all.
func (m *Manager) Configured() bool {
	return m.cfg.File != "" || m.cfg.URL != ""
}

// Current returns the published snapshot without blocking, or nil.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// Acquire returns the published snapshot, loading it on first use.
func (m *Manager) Acquire(ctx context.Context) (*Snapshot, error) {
	if s := m.current.Load(); s != nil {
		return s, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.current.Load(); s != nil {
		return s, nil
	}
	s, err := m.load(ctx, false)
	if err != nil {
		return nil, err
	}
	m.current.Store(s)
	return s, nil
}

// Refresh re-acquires the schema bypassing the disk cache and swaps the
// snapshot. On failure the previous snapshot stays published.
func (m *Manager) Refresh(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(ctx, true)
	if err != nil {
		return nil, err
	}
	m.current.Store(s)
	return s, nil
}

// ClearCache drops every cached introspection result. Without a cache_dir
// it does nothing.
func (m *Manager) ClearCache() error {
	if m.cfg.CacheDir == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache == nil {
		c, err := OpenDiskCache(m.cfg.resolve(m.cfg.CacheDir))
		if err != nil {
			return err
		}
		m.cache = c
	}
	return m.cache.DropAll()
}

func (m *Manager) load(ctx context.Context, bypassCache bool) (*Snapshot, error) {
	start := m.now()
	var (
		s   *Snapshot
		err error
	)
	switch {
	case m.cfg.URL != "":
		s, err = m.loadRemote(ctx, bypassCache)
	case m.cfg.File != "":
		s, err = m.loadLocal()
	default:
		return nil, &AcquisitionError{Source: SourceLocal, Origin: "<config>", Err: errors.New("no schema file or url configured")}
	}
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{
		"source":   s.Source.String(),
		"origin":   s.Origin,
		"types":    len(s.Schema.Types),
		"duration": m.now().Sub(start).String(),
	}).Info("schema acquired")
	return s, nil
}

func (m *Manager) loadLocal() (*Snapshot, error) {
	p := m.cfg.resolve(m.cfg.File)
	fail := func(err error) error {
		return &AcquisitionError{Source: SourceLocal, Origin: p, Err: err}
	}
	// #nosec G304 -- schema path comes from project configuration
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fail(err)
	}
	var (
		sch  *ast.Schema
		text string
	)
	if strings.EqualFold(filepath.Ext(p), ".json") {
		sch, text, err = LoadIntrospection(p, data)
	} else {
		text = string(data)
		sch, err = gqlparser.LoadSchema(&ast.Source{Name: p, Input: text})
	}
	if err != nil {
		return nil, fail(err)
	}
	return &Snapshot{Schema: sch, Source: SourceLocal, Origin: p, LoadedAt: m.now(), Digest: xxh3.HashString(text)}, nil
}

func (m *Manager) loadRemote(ctx context.Context, bypassCache bool) (*Snapshot, error) {
	headers, err := m.expandHeaders()
	if err != nil {
		return nil, &AcquisitionError{Source: SourceRemote, Origin: m.cfg.URL, Err: err}
	}
	method := strings.ToUpper(m.cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	key := CacheKey(m.cfg.URL, method, headers)

	if m.cfg.CacheDir != "" && m.cache == nil {
		if m.cache, err = OpenDiskCache(m.cfg.resolve(m.cfg.CacheDir)); err != nil {
			m.log.WithError(err).Warn("schema cache disabled")
		}
	}
	if !bypassCache {
		if payload, ok, err := m.cache.Get(key); err != nil {
			m.log.WithError(err).Warn("schema cache read failed")
		} else if ok {
			if s, err := m.snapshotFromBody(payload.Body, payload.FetchedAt); err == nil {
				m.log.WithField("url", m.cfg.URL).Debug("schema loaded from disk cache")
				return s, nil
			}
		}
	}

	body, err := m.fetch(ctx, method, headers)
	if err != nil {
		return nil, err
	}
	fetchedAt := m.now()
	s, err := m.snapshotFromBody(body, fetchedAt)
	if err != nil {
		return nil, &AcquisitionError{Source: SourceRemote, Origin: m.cfg.URL, Err: err}
	}
	if err := m.cache.Put(key, &DiskPayload{URL: m.cfg.URL, Method: method, Body: body, FetchedAt: fetchedAt}); err != nil {
		m.log.WithError(err).Warn("schema cache write failed")
	}
	return s, nil
}

func (m *Manager) snapshotFromBody(body []byte, at time.Time) (*Snapshot, error) {
	sch, sdl, err := LoadIntrospection(m.cfg.URL, body)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Schema: sch, Source: SourceRemote, Origin: m.cfg.URL, LoadedAt: at, Digest: xxh3.HashString(sdl)}, nil
}

// fetch issues exactly one introspection request; any transport error or
// non-2xx status is fatal for this attempt.
func (m *Manager) fetch(ctx context.Context, method string, headers map[string]string) ([]byte, error) {
	fail := func(status int, err error) error {
		return &AcquisitionError{Source: SourceRemote, Origin: m.cfg.URL, StatusCode: status, Err: err}
	}
	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		u, perr := url.Parse(m.cfg.URL)
		if perr != nil {
			return nil, fail(0, perr)
		}
		q := u.Query()
		q.Set("query", IntrospectionQuery)
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	} else {
		payload, merr := json.Marshal(map[string]string{"query": IntrospectionQuery})
		if merr != nil {
			return nil, fail(0, merr)
		}
		req, err = http.NewRequestWithContext(ctx, method, m.cfg.URL, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected status %s: %s", resp.Status, snippet))
	}
	return body, nil
}

// expandHeaders substitutes ${VAR} in header values using the process
// environment, after loading the optional .env file.
func (m *Manager) expandHeaders() (map[string]string, error) {
	if len(m.cfg.Headers) == 0 {
		return nil, nil
	}
	env := map[string]string{}
	if m.cfg.EnvFile != "" {
		p := m.cfg.resolve(m.cfg.EnvFile)
		if vals, err := godotenv.Read(p); err == nil {
			env = vals
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
	}
	lookup := func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return env[name]
	}
	out := make(map[string]string, len(m.cfg.Headers))
	for k, v := range m.cfg.Headers {
		out[k] = os.Expand(v, lookup)
	}
	return out, nil
}
