package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"gqlembed/internal/diag"
	"gqlembed/internal/source"
)

type palette struct {
	err, warn, info, code, caret, gutter, note *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan, color.Bold),
		code:   color.New(color.Bold),
		caret:  color.New(color.FgRed),
		gutter: color.New(color.FgBlue),
		note:   color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.code, p.caret, p.gutter, p.note} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	}
	return p.info
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем строку хост-файла с подчёркиванием ^~~~ по Span, затем Notes.
// Диагностики уровня проекта печатаются без места.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		header := p.severity(d.Severity).Sprint(d.Severity.String()) + " " + p.code.Sprint(d.Code.ID()) + ": " + d.Message
		if d.IsProjectLevel() || !fs.HasFile(d.Primary.File) {
			fmt.Fprintf(w, "gqlembed: %s\n", header)
			continue
		}
		f := fs.Get(d.Primary.File)
		start, _ := fs.Resolve(d.Primary)
		fmt.Fprintf(w, "%s:%d:%d: %s\n", formatPath(f, fs, opts.PathMode), start.Line, start.Col, header)
		writeSnippet(w, p, f, d.Primary, int(opts.Context))

		if opts.ShowNotes {
			for _, n := range d.Notes {
				if n.Span.File == source.NoFile || !fs.HasFile(n.Span.File) {
					fmt.Fprintf(w, "  %s %s\n", p.note.Sprint("note:"), n.Msg)
					continue
				}
				nf := fs.Get(n.Span.File)
				ns, _ := fs.Resolve(n.Span)
				fmt.Fprintf(w, "  %s %s:%d:%d: %s\n", p.note.Sprint("note:"), formatPath(nf, fs, opts.PathMode), ns.Line, ns.Col, n.Msg)
			}
		}
	}
}

// writeSnippet prints the primary line with up to context lines above it and
// underlines the span. A span crossing lines is underlined to the line end.
func writeSnippet(w io.Writer, p palette, f *source.File, sp source.Span, context int) {
	start, end := f.Position(sp.Start), f.Position(sp.End)
	first := max(int(start.Line)-context, 1)
	width := len(fmt.Sprint(start.Line))
	for ln := first; ln <= int(start.Line); ln++ {
		line := strings.TrimRight(f.GetLine(uint32(ln)), "\r") // #nosec G115 -- ln is a positive line number
		fmt.Fprintf(w, "%s %s\n", p.gutter.Sprintf("%*d |", width, ln), expandTabs(line))
	}
	line := f.GetLine(start.Line)
	from := max(min(int(start.Col)-1, len(line)), 0)
	to := len(line)
	if end.Line == start.Line {
		to = min(int(end.Col)-1, len(line))
	}
	pad := runewidth.StringWidth(expandTabs(line[:from]))
	span := max(runewidth.StringWidth(expandTabs(line[from:max(to, from)])), 1)
	marker := "^" + strings.Repeat("~", span-1)
	fmt.Fprintf(w, "%s %s%s\n", p.gutter.Sprint(strings.Repeat(" ", width)+" |"), strings.Repeat(" ", pad), p.caret.Sprint(marker))
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

// Summary writes "N errors, M warnings" for the diagnostics in bag.
func Summary(w io.Writer, bag *diag.Bag, colored bool) {
	p := newPalette(colored)
	var errs, warns int
	for _, d := range bag.Items() {
		switch d.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}
	}
	if errs == 0 && warns == 0 {
		return
	}
	fmt.Fprintf(w, "%s, %s\n", p.err.Sprint(plural(errs, "error")), p.warn.Sprint(plural(warns, "warning")))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
