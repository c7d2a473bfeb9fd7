package editor

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"gqlembed/internal/compose"
	"gqlembed/internal/diag"
	"gqlembed/internal/extract"
	"gqlembed/internal/schema"
	"gqlembed/internal/source"
	"gqlembed/internal/validate"
)

// resultKey identifies a validation result: the composed text, the schema
// and where (and with which composition findings) the text sits in the host.
type resultKey struct {
	composed uint64
	schema   uint64
	layout   uint64
}

func (s *Surface) sortedUnitsLocked() []*unit {
	out := make([]*unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}

// analyzeLocked re-extracts edited units and rebuilds the composition graph.
// Units whose documents did not change and do not depend on changed
// documents keep their validated diagnostics.
func (s *Surface) analyzeLocked(ctx context.Context) {
	var changed []*unit
	before := make(map[string][]*extract.EmbeddedSpan)
	for _, u := range s.sortedUnitsLocked() {
		if u.state != Unanalyzed {
			continue
		}
		before[u.path] = u.spans
		a, err := s.parser.Reparse(ctx, u.ast, u.file)
		if err != nil {
			// ошибки хоста показывает сам хост, здесь просто нет документов
			s.log.WithError(err).WithField("path", u.path).Debug("host parse failed")
		}
		u.ast.Close()
		u.ast = a
		if a != nil {
			s.prog.Set(a)
			u.spans = s.ex.Extract(a)
		} else {
			s.prog.Remove(u.path)
			u.spans = nil
		}
		s.tables.Purge(u.path, u.file.Version)
		u.state = Extracted
		changed = append(changed, u)
	}
	if len(changed) == 0 && s.project != nil {
		return
	}

	var spans []*extract.EmbeddedSpan
	for _, u := range s.sortedUnitsLocked() {
		spans = append(spans, u.spans...)
	}
	old := s.project
	s.project = compose.Build(spans, s.prog, s.opts.Compose)
	if old != nil {
		s.invalidateLocked(old, changed, before)
	}
	for _, u := range s.units {
		if u.state == Extracted {
			u.state = Composed
		}
	}
	s.log.WithFields(logrus.Fields{
		"changed": len(changed),
		"spans":   len(spans),
		"nodes":   len(s.project.Nodes),
	}).Debug("composition rebuilt")
}

func (s *Surface) invalidateLocked(old *compose.Project, changed []*unit, before map[string][]*extract.EmbeddedSpan) {
	p := s.project
	dirty := make(map[string]bool)
	names := make(map[string]bool)
	var oldNodes, newNodes []*compose.Node
	for _, u := range changed {
		dirty[u.path] = true
		prev := digests(before[u.path])
		cur := digests(u.spans)
		for _, sp := range before[u.path] {
			if !cur[signature(sp)] {
				oldNodes = append(oldNodes, old.NodesOf(sp)...)
			}
		}
		for _, sp := range u.spans {
			if !prev[signature(sp)] {
				newNodes = append(newNodes, p.NodesOf(sp)...)
			}
		}
	}
	for _, n := range append(append([]*compose.Node(nil), oldNodes...), newNodes...) {
		if n.Kind == compose.KindFragment {
			names[n.Name] = true
		}
	}
	for _, n := range old.Dependents(oldNodes) {
		dirty[n.Span.Path] = true
	}
	for _, n := range p.Dependents(newNodes) {
		dirty[n.Span.Path] = true
	}
	// одноимённые фрагменты в других файлах: диагностика дубликатов могла измениться
	for _, n := range p.Nodes {
		if n.Kind == compose.KindFragment && names[n.Name] {
			dirty[n.Span.Path] = true
		}
	}
	for path := range dirty {
		if u, ok := s.units[path]; ok && u.state == Validated {
			u.reset(Composed)
		}
	}
}

func digests(spans []*extract.EmbeddedSpan) map[uint64]bool {
	out := make(map[uint64]bool, len(spans))
	for _, sp := range spans {
		out[signature(sp)] = true
	}
	return out
}

// signature covers everything other literals can observe of a span: its text
// and the binding interpolations resolve through.
func signature(sp *extract.EmbeddedSpan) uint64 {
	h := xxh3.New()
	fmt.Fprintf(h, "%d;%s;%t;", sp.Digest, sp.Binding, sp.Exported)
	for _, hole := range sp.Holes {
		fmt.Fprintf(h, "%s;", hole.Expr)
	}
	return h.Sum64()
}

// Diagnostics returns the validated diagnostics of a unit in host
// coordinates. A result computed for a version that changed meanwhile is
// discarded with ErrStale.
func (s *Surface) Diagnostics(ctx context.Context, path string) ([]diag.Diagnostic, error) {
	s.mu.Lock()
	u, ok := s.units[source.NormalizePath(path)]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, path)
	}
	s.analyzeLocked(ctx)
	if u.state == Validated {
		out := s.withProjectLocked(u.diags)
		s.mu.Unlock()
		return out, nil
	}
	gen, file, p, spans, snap := u.gen, u.file, s.project, u.spans, s.snapshot()
	s.mu.Unlock()

	diags := s.compute(p, file, spans, snap)
	if s.afterCompute != nil {
		s.afterCompute()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.units[u.path]; !ok || cur != u || u.gen != gen {
		return nil, ErrStale
	}
	u.diags = diags
	u.state = Validated
	return s.withProjectLocked(diags), nil
}

func (s *Surface) compute(p *compose.Project, file *source.File, spans []*extract.EmbeddedSpan, snap *schema.Snapshot) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, sp := range spans {
		for _, n := range p.NodesOf(sp) {
			for _, d := range s.validateCached(p.Compose(n), snap) {
				// находки в чужих файлах показываются в своих файлах
				if d.Primary.File == file.ID {
					out = append(out, d)
				}
			}
		}
	}
	for _, d := range p.Loose {
		if d.Primary.File == file.ID {
			out = append(out, d)
		}
	}
	out = diag.Dedup(out)
	diag.SortDiagnostics(out)
	return out
}

// cachedResult keeps the segment files a result was computed against, so a
// hit after a host-only edit can move the findings onto the current versions.
type cachedResult struct {
	diags []diag.Diagnostic
	files []source.FileID
}

func (s *Surface) validateCached(c *compose.Composition, snap *schema.Snapshot) []diag.Diagnostic {
	if c.Doc == nil {
		return validate.Validate(c, snap)
	}
	key := resultKey{composed: c.Doc.Digest, layout: layoutDigest(c)}
	if snap != nil {
		key.schema = snap.Digest
	}
	files := segmentFiles(c)
	if hit, ok := s.results.Get(key); ok {
		return rebase(hit, files)
	}
	ds := validate.Validate(c, snap)
	s.results.Add(key, cachedResult{diags: ds, files: files})
	return ds
}

func segmentFiles(c *compose.Composition) []source.FileID {
	out := make([]source.FileID, len(c.Doc.Segments))
	for i, seg := range c.Doc.Segments {
		out[i] = seg.Span.File
	}
	return out
}

// rebase rewrites the file of every finding from the cached segment files to
// the current ones. The layout key guarantees both lists line up.
func rebase(hit cachedResult, files []source.FileID) []diag.Diagnostic {
	moved := make(map[source.FileID]source.FileID, len(files))
	for i, id := range hit.files {
		if i < len(files) && id != files[i] {
			moved[id] = files[i]
		}
	}
	if len(moved) == 0 {
		return hit.diags
	}
	out := make([]diag.Diagnostic, len(hit.diags))
	for i, d := range hit.diags {
		if to, ok := moved[d.Primary.File]; ok {
			d.Primary.File = to
		}
		if len(d.Notes) > 0 {
			notes := make([]diag.Note, len(d.Notes))
			for j, n := range d.Notes {
				if to, ok := moved[n.Span.File]; ok {
					n.Span.File = to
				}
				notes[j] = n
			}
			d.Notes = notes
		}
		out[i] = d
	}
	return out
}

// layoutDigest covers where the composed text sits in the host: per segment
// the unit path, the literal start, the raw literal text (its escapes decide
// the decoded-to-host table) and the node offset. Files are named by segment
// index so that a new version of an unchanged literal reuses the result.
func layoutDigest(c *compose.Composition) uint64 {
	h := xxh3.New()
	index := make(map[source.FileID]int, len(c.Doc.Segments))
	for i, seg := range c.Doc.Segments {
		if _, ok := index[seg.Span.File]; !ok {
			index[seg.Span.File] = i
		}
		fmt.Fprintf(h, "%s:%d:%x:%d;", seg.Span.Path, seg.Span.Host.Start, xxh3.HashString(seg.Span.Raw), seg.SpanStart)
	}
	file := func(id source.FileID) string {
		if i, ok := index[id]; ok {
			return fmt.Sprintf("s%d", i)
		}
		return fmt.Sprintf("f%d", id)
	}
	fmt.Fprintf(h, "complex=%t;", c.TooComplex)
	for _, d := range c.Diags {
		fmt.Fprintf(h, "%d:%s:%d:%d:%s;", d.Code, file(d.Primary.File), d.Primary.Start, d.Primary.End, d.Message)
		for _, n := range d.Notes {
			fmt.Fprintf(h, "note:%s:%d:%d:%s;", file(n.Span.File), n.Span.Start, n.Span.End, n.Msg)
		}
	}
	return h.Sum64()
}

func (s *Surface) withProjectLocked(diags []diag.Diagnostic) []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(diags)+1)
	if s.schemaErr != nil {
		out = append(out, diag.NewProject(diag.SchAcquisition, s.schemaErr.Error()))
	}
	return append(out, diags...)
}
