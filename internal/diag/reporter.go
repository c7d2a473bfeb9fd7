package diag

import (
	"gqlembed/internal/source"
)

// Reporter receives diagnostics from an analysis pass.
type Reporter interface {
	Report(d Diagnostic)
}

// SliceReporter collects diagnostics in report order. Not safe for
// concurrent use; each document gets its own.
type SliceReporter struct {
	Items []Diagnostic
}

func (r *SliceReporter) Report(d Diagnostic) {
	r.Items = append(r.Items, d)
}

// Pending is a diagnostic being assembled; nothing reaches the Reporter
// until Emit.
type Pending struct {
	r Reporter
	d Diagnostic
}

// ReportError starts an error diagnostic at primary.
func ReportError(r Reporter, code Code, primary source.Span, msg string) *Pending {
	return &Pending{r: r, d: NewError(code, primary, msg)}
}

// At records the position inside the embedded document.
func (p *Pending) At(pos source.LineCol) *Pending {
	p.d = p.d.WithEmbedded(pos)
	return p
}

// Emit hands the diagnostic to the reporter.
func (p *Pending) Emit() {
	if p.r != nil {
		p.r.Report(p.d)
	}
}
