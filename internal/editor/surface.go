// Package editor keeps per-unit analysis state for an interactive session
// and answers diagnostics, completion and quick-info requests at host
// offsets.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"gqlembed/internal/compose"
	"gqlembed/internal/diag"
	"gqlembed/internal/extract"
	"gqlembed/internal/host"
	"gqlembed/internal/posmap"
	"gqlembed/internal/schema"
	"gqlembed/internal/source"
)

var (
	ErrNotOpen = errors.New("unit is not open")
	// ErrStale is returned when the unit changed while a result was computed.
	ErrStale = errors.New("result is stale")
)

// State is the analysis stage a unit has reached.
type State uint8

const (
	Unanalyzed State = iota
	Extracted
	Composed
	Validated
)

func (s State) String() string {
	switch s {
	case Extracted:
		return "extracted"
	case Composed:
		return "composed"
	case Validated:
		return "validated"
	}
	return "unanalyzed"
}

// SchemaSource is the part of schema.Manager the surface needs.
type SchemaSource interface {
	Configured() bool
	Current() *schema.Snapshot
	Acquire(ctx context.Context) (*schema.Snapshot, error)
	Refresh(ctx context.Context) (*schema.Snapshot, error)
}

type Options struct {
	Tag     string
	Compose compose.Options
	Schema  SchemaSource
	Logger  logrus.FieldLogger
	// CacheSize bounds both the position-table cache and the validation cache.
	CacheSize int
}

// TextEdit replaces host bytes [Start, End) of the current text.
type TextEdit struct {
	Start, End uint32
	Text       string
}

type unit struct {
	path  string
	file  *source.File
	ast   *host.AST
	open  bool
	state State
	gen   uint64 // растёт при каждой инвалидации
	spans []*extract.EmbeddedSpan
	diags []diag.Diagnostic
}

// Surface is safe for concurrent use; requests for one unit are expected to
// be issued one at a time.
type Surface struct {
	mu        sync.Mutex
	fs        *source.FileSet
	parser    *host.Parser
	prog      *host.Program
	ex        *extract.Extractor
	tables    *posmap.Cache
	results   *lru.Cache[resultKey, cachedResult]
	units     map[string]*unit
	project   *compose.Project
	schema    SchemaSource
	schemaErr error
	opts      Options
	log       logrus.FieldLogger

	// afterCompute runs between computing and publishing diagnostics.
	afterCompute func()
}

func NewSurface(opts Options) (*Surface, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = posmap.DefaultCacheSize
	}
	tables, err := posmap.NewCache(size)
	if err != nil {
		return nil, err
	}
	results, err := lru.New[resultKey, cachedResult](size)
	if err != nil {
		return nil, fmt.Errorf("validation cache: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	tag := opts.Tag
	if tag == "" {
		tag = extract.DefaultTag
	}
	return &Surface{
		fs:      source.NewFileSet(),
		parser:  host.NewParser(),
		prog:    host.NewProgram(),
		ex:      extract.New(tag, tables),
		tables:  tables,
		results: results,
		units:   make(map[string]*unit),
		schema:  opts.Schema,
		opts:    opts,
		log:     log,
	}, nil
}

// Open registers an editor buffer. Reopening replaces the text.
func (s *Surface) Open(path string, text []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(path, text, true)
}

// Load registers a project file that is not open in the editor, so that
// documents in open units can resolve fragments it exports.
func (s *Surface) Load(path string, text []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[source.NormalizePath(path)]; ok && u.open {
		return
	}
	s.put(path, text, false)
}

func (s *Surface) put(path string, text []byte, open bool) {
	id := s.fs.Add(path, text, source.FileVirtual)
	f := s.fs.Get(id)
	u, ok := s.units[f.Path]
	if !ok {
		u = &unit{path: f.Path}
		s.units[f.Path] = u
	}
	u.file = f
	u.open = u.open || open
	u.reset(Unanalyzed)
}

// reset moves the unit back to st; in-flight results for it become stale.
func (u *unit) reset(st State) {
	if u.state > st {
		u.state = st
	}
	u.gen++
}

// Change applies edits and moves the unit to version. version <= 0 means
// "next version".
func (s *Surface) Change(path string, edits []TextEdit, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[source.NormalizePath(path)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, path)
	}
	text := append([]byte(nil), u.file.Content...)
	for _, e := range edits {
		start, end := clamp(e.Start, len(text)), clamp(e.End, len(text))
		if end < start {
			start, end = end, start
		}
		next := make([]byte, 0, len(text)-int(end-start)+len(e.Text))
		next = append(next, text[:start]...)
		next = append(next, e.Text...)
		next = append(next, text[end:]...)
		text = next
	}
	if version <= 0 {
		version = u.file.Version + 1
	}
	id, err := s.fs.AddVersion(u.path, text, version)
	if err != nil {
		return err
	}
	u.file = s.fs.Get(id)
	u.reset(Unanalyzed)
	return nil
}

func clamp(off uint32, n int) uint32 {
	if int(off) > n {
		// #nosec G115 -- n is a buffer length
		return uint32(n)
	}
	return off
}

// Close forgets a unit.
func (s *Surface) Close(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := source.NormalizePath(path)
	u, ok := s.units[p]
	if !ok {
		return
	}
	delete(s.units, p)
	s.prog.Remove(p)
	s.tables.Purge(p, u.file.Version+1)
	u.ast.Close()
	s.project = nil
	// зависимые документы могли ссылаться на фрагменты закрытого файла
	for _, other := range s.units {
		other.reset(Composed)
	}
}

// Version reports the current version of a unit.
func (s *Surface) Version(path string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[source.NormalizePath(path)]
	if !ok {
		return 0, false
	}
	return u.file.Version, true
}

// StateOf reports the analysis stage of a unit.
func (s *Surface) StateOf(path string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[source.NormalizePath(path)]; ok {
		return u.state
	}
	return Unanalyzed
}

// Text returns the current text of a unit.
func (s *Surface) Text(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[source.NormalizePath(path)]
	if !ok {
		return nil, false
	}
	return u.file.Content, true
}

// OpenPaths lists open units, sorted.
func (s *Surface) OpenPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.units))
	for p, u := range s.units {
		if u.open {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// LoadSchema acquires the configured schema once. Failures are kept and
// reported as a project-level diagnostic instead of failing requests.
func (s *Surface) LoadSchema(ctx context.Context) error {
	if s.schema == nil || !s.schema.Configured() {
		return nil
	}
	_, err := s.schema.Acquire(ctx)
	s.setSchemaResult(err)
	return err
}

// ReloadSchema re-acquires the schema; it is the only path that refetches.
func (s *Surface) ReloadSchema(ctx context.Context) error {
	if s.schema == nil || !s.schema.Configured() {
		return nil
	}
	_, err := s.schema.Refresh(ctx)
	s.setSchemaResult(err)
	return err
}

func (s *Surface) setSchemaResult(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaErr = err
	if err != nil {
		s.log.WithError(err).Warn("schema acquisition failed")
	}
	for _, u := range s.units {
		u.reset(Composed)
	}
}

func (s *Surface) snapshot() *schema.Snapshot {
	if s.schema == nil {
		return nil
	}
	return s.schema.Current()
}
