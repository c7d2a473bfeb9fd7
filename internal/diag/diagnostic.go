package diag

import (
	"gqlembed/internal/source"
)

type Note struct {
	Span source.Span
	Msg  string
}

// Diagnostic is one finding about an embedded document.
// Embedded holds the position inside the GraphQL text (1-based, zero when unknown);
// Primary is the same location remapped into host coordinates.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Embedded source.LineCol
	Notes    []Note
}

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

// NewProject builds a diagnostic that is not bound to any host file.
func NewProject(code Code, msg string) Diagnostic {
	return New(SevError, code, source.Span{File: source.NoFile}, msg)
}

func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Msg: msg})
	return d
}

func (d Diagnostic) WithEmbedded(pos source.LineCol) Diagnostic {
	d.Embedded = pos
	return d
}

// IsProjectLevel reports whether the diagnostic has no host location.
func (d Diagnostic) IsProjectLevel() bool {
	return d.Primary.File == source.NoFile
}
