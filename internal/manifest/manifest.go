// Package manifest projects an analysed project into a machine-readable
// manifest (JSON or msgpack) and a human report.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"gqlembed/internal/compose"
	"gqlembed/internal/diag"
	"gqlembed/internal/source"
)

const blank = " \t\r\n,"

// FormatVersion is bumped when Manifest changes incompatibly.
const FormatVersion = 1

// Result is what the pipeline computed for one root.
type Result struct {
	Composition *compose.Composition
	Diagnostics []diag.Diagnostic
}

type Position struct {
	Line   uint32 `json:"line" msgpack:"line"`
	Column uint32 `json:"column" msgpack:"column"`
	Offset uint32 `json:"offset" msgpack:"offset"`
}

// Entry describes one operation or fragment definition.
type Entry struct {
	File          string   `json:"file" msgpack:"file"`
	Kind          string   `json:"kind" msgpack:"kind"`
	OperationType string   `json:"operationType,omitempty" msgpack:"operationType,omitempty"`
	Name          string   `json:"name,omitempty" msgpack:"name,omitempty"`
	Binding       string   `json:"binding,omitempty" msgpack:"binding,omitempty"`
	Exported      bool     `json:"exported" msgpack:"exported"`
	Tag           string   `json:"tag" msgpack:"tag"`
	Start         Position `json:"start" msgpack:"start"`
	End           Position `json:"end" msgpack:"end"`
	// Body is the composed text: the definition plus every fragment it needs.
	Body      string   `json:"body,omitempty" msgpack:"body,omitempty"`
	Fragments []string `json:"fragments,omitempty" msgpack:"fragments,omitempty"`
	Digest    string   `json:"digest,omitempty" msgpack:"digest,omitempty"`
	Errors    int      `json:"errors" msgpack:"errors"`
	Warnings  int      `json:"warnings" msgpack:"warnings"`
}

type Manifest struct {
	Version   int     `json:"version" msgpack:"version"`
	Documents []Entry `json:"documents" msgpack:"documents"`
}

// Build lists every definition of p, fragments before the documents that
// use them. Paths are made relative to fs.BaseDir().
func Build(p *compose.Project, fs *source.FileSet, results map[*compose.Node]Result) *Manifest {
	m := &Manifest{Version: FormatVersion, Documents: make([]Entry, 0, len(p.Nodes))}
	for _, n := range p.Order() {
		if n.Kind == compose.KindBroken {
			continue
		}
		m.Documents = append(m.Documents, entry(n, fs, results[n]))
	}
	return m
}

func entry(n *compose.Node, fs *source.FileSet, r Result) Entry {
	e := Entry{
		File:     n.Span.Path,
		Kind:     n.Kind.String(),
		Name:     n.Name,
		Binding:  n.Span.Binding,
		Exported: n.Span.Exported,
		Tag:      n.Span.Tag,
	}
	if n.Kind == compose.KindOperation {
		e.OperationType = string(n.Operation)
	}
	// пробелы вокруг определения не входят в диапазон
	text := n.Text()
	start := n.Start + len(text) - len(strings.TrimLeft(text, blank))
	end := n.Start + len(strings.TrimRight(text, blank))
	if end < start {
		end = start
	}
	host := n.Span.HostSpan(start, end)
	if f := fs.Get(host.File); f != nil {
		e.File = f.RelPath(fs.BaseDir())
		e.Start = position(f, host.Start)
		e.End = position(f, host.End)
	}
	if c := r.Composition; c != nil && c.Doc != nil {
		e.Body = c.Doc.Text
		e.Digest = fmt.Sprintf("%016x", c.Doc.Digest)
		for _, fr := range c.Doc.Fragments {
			e.Fragments = append(e.Fragments, fr.Name)
		}
	}
	for _, d := range r.Diagnostics {
		switch d.Severity {
		case diag.SevError:
			e.Errors++
		case diag.SevWarning:
			e.Warnings++
		}
	}
	return e
}

func position(f *source.File, off uint32) Position {
	lc := f.Position(off)
	return Position{Line: lc.Line, Column: lc.Col, Offset: off}
}

func (m *Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func (m *Manifest) WriteMsgpack(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(m)
}

// ReadMsgpack decodes a manifest written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := msgpack.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
