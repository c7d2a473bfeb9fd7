// Package validate checks composed documents: grammar first, then the
// standard GraphQL rules against a schema snapshot, then the findings the
// composition step already made.
package validate

import (
	"errors"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
	_ "github.com/vektah/gqlparser/v2/validator/rules"

	"gqlembed/internal/compose"
	"gqlembed/internal/diag"
	"gqlembed/internal/schema"
	"gqlembed/internal/source"
)

const ruleNoUnusedFragments = "NoUnusedFragments"

// Validate returns the diagnostics of one composition, deduplicated by
// location and message. snap may be nil: then only grammar and composition
// checks run.
func Validate(c *compose.Composition, snap *schema.Snapshot) []diag.Diagnostic {
	if c == nil {
		return nil
	}
	r := &diag.SliceReporter{}
	if c.Doc == nil {
		// корень заблокирован циклом, проверять нечего
		for _, d := range c.Diags {
			r.Report(d)
		}
		return diag.Dedup(r.Items)
	}

	doc, err := parser.ParseQuery(&ast.Source{Name: c.Root.Span.ID(), Input: c.Doc.Text})
	if err != nil {
		reportSyntax(r, c, err)
		return r.Items
	}

	if snap != nil && snap.Schema != nil && !c.TooComplex {
		for _, e := range validator.Validate(snap.Schema, doc) {
			if c.Root.Kind == compose.KindFragment && e.Rule == ruleNoUnusedFragments {
				continue
			}
			span, pos := locate(c, e.Locations)
			diag.ReportError(r, diag.SemaConformance, span, e.Message).At(pos).Emit()
		}
	}

	for _, d := range c.Diags {
		r.Report(d)
	}
	return diag.Dedup(r.Items)
}

func reportSyntax(r diag.Reporter, c *compose.Composition, err error) {
	msg := err.Error()
	var locs []gqlerror.Location
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		msg = gerr.Message
		locs = gerr.Locations
	}
	span, pos := locate(c, locs)
	diag.ReportError(r, diag.SynUnexpectedToken, span, "Syntax Error: "+msg).At(pos).Emit()
}

// locate maps the first gqlparser location (composed text coordinates) back
// to the literal it came from.
func locate(c *compose.Composition, locs []gqlerror.Location) (source.Span, source.LineCol) {
	root := c.Root
	if len(locs) == 0 {
		return root.Site(), root.Span.Position(root.NameStart)
	}
	off := c.Doc.Offset(locs[0].Line, locs[0].Column)
	sp, emb := c.Doc.Locate(off)
	return sp.HostSpan(emb, emb+tokenLen(sp.Text[emb:])), sp.Position(emb)
}

// tokenLen is the length of the name or punctuator starting s.
func tokenLen(s string) int {
	if s == "" {
		return 0
	}
	if strings.HasPrefix(s, "...") {
		return 3
	}
	n := 0
	for n < len(s) && isNameByte(s[n]) {
		n++
	}
	if n == 0 {
		return 1
	}
	return n
}

func isNameByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
