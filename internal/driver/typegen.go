package driver

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gqlembed/internal/compose"
	"gqlembed/internal/diag"
	"gqlembed/internal/project"
	"gqlembed/internal/typegen"
)

// GeneratedFile is one emitted TypeScript module.
type GeneratedFile struct {
	Unit  string
	Path  string
	Types int
	// Written is false when the file already had the same content.
	Written bool
}

// Typegen validates the project and writes one module per source unit for
// every document that validated without errors. Documents with errors are
// skipped; their diagnostics make the run fail.
func Typegen(ctx context.Context, opts Options) (*Result, error) {
	res, err := Validate(ctx, opts)
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	g := &typegen.Generator{
		Scalars:       cfg.Typegen.Scalars,
		MaskFragments: cfg.Typegen.MaskFragments,
		RootNames:     rootNames(res),
	}
	log := opts.logger()

	byUnit := make(map[string][]*typegen.GeneratedType)
	seen := make(map[string]map[string]*typegen.GeneratedType)
	var units []string
	err = opts.Timer.Measure("typegen", func() (string, error) {
		// Order ставит фрагменты раньше операций, которые их используют
		for _, n := range res.Project.Order() {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			r, ok := res.Results[n]
			if !ok || diag.HasErrors(r.Diagnostics) {
				continue
			}
			types, err := g.Generate(r.Composition, res.Snapshot)
			if err != nil {
				res.Diagnostics = append(res.Diagnostics, diag.NewError(diag.GenFailed, n.Site(), err.Error()))
				continue
			}
			unit := n.Span.Path
			if seen[unit] == nil {
				seen[unit] = make(map[string]*typegen.GeneratedType)
				units = append(units, unit)
			}
			for _, t := range types {
				if prev, ok := seen[unit][t.Name]; ok {
					// общие фрагменты и перечисления совпадают побайтно
					if prev.Body != t.Body {
						res.Diagnostics = append(res.Diagnostics, diag.NewError(diag.GenFailed, n.Site(),
							fmt.Sprintf("%s: type %s is already generated in this module with a different shape", n.Label(), t.Name)))
					}
					continue
				}
				seen[unit][t.Name] = t
				byUnit[unit] = append(byUnit[unit], t)
			}
		}
		sort.Strings(units)
		return fmt.Sprintf("%d modules", len(units)), nil
	})
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]string, len(units))
	owners := make(map[string]string, len(units))
	for _, unit := range units {
		out := outputPath(cfg.Root, cfg.Typegen.OutDir, unit)
		if prev, ok := owners[out]; ok {
			return nil, fmt.Errorf("%s and %s both generate %s", prev, unit, out)
		}
		owners[out] = unit
		outputs[unit] = out
	}

	err = opts.Timer.Measure("write", func() (string, error) {
		written := 0
		for _, unit := range units {
			start := time.Now()
			out := outputs[unit]
			emit(opts.Progress, Event{File: unit, Stage: StageTypegen, Status: StatusWorking})
			text := typegen.Emit(byUnit[unit], func(dep string) string {
				return importSpecifier(out, outputPath(cfg.Root, cfg.Typegen.OutDir, dep))
			})
			changed, err := writeIfChanged(out, []byte(text))
			if err != nil {
				res.Diagnostics = append(res.Diagnostics, diag.NewProject(diag.IOWriteFileError, err.Error()))
				emit(opts.Progress, Event{File: unit, Stage: StageTypegen, Status: StatusError, Err: err})
				continue
			}
			if changed {
				written++
			}
			res.Generated = append(res.Generated, GeneratedFile{Unit: unit, Path: out, Types: len(byUnit[unit]), Written: changed})
			emit(opts.Progress, Event{File: unit, Stage: StageTypegen, Status: StatusDone, Elapsed: time.Since(start)})
			log.WithFields(logrus.Fields{"path": out, "types": len(byUnit[unit]), "written": changed}).Debug("generated module")
		}
		return fmt.Sprintf("%d written, %d unchanged", written, len(res.Generated)-written), nil
	})
	if err != nil {
		return nil, err
	}
	res.finish()
	return res, nil
}

// rootNames numbers operations that would share a root type name within
// their unit.
func rootNames(res *Result) map[*compose.Node]string {
	byUnit := make(map[string][]*compose.Node)
	for _, n := range res.Project.Nodes {
		byUnit[n.Span.Path] = append(byUnit[n.Span.Path], n)
	}
	out := make(map[*compose.Node]string, len(res.Project.Nodes))
	for _, nodes := range byUnit {
		maps.Copy(out, typegen.UnitRootNames(nodes))
	}
	return out
}

// outputPath places the module for unit under outDir. A relative outDir is
// resolved against the unit's directory; an absolute one mirrors the unit's
// path relative to root.
func outputPath(root, outDir, unit string) string {
	if outDir == "" {
		outDir = project.DefaultOutDir
	}
	name := strings.TrimSuffix(filepath.Base(unit), filepath.Ext(unit)) + ".graphql.ts"
	if !filepath.IsAbs(outDir) {
		return filepath.Join(filepath.Dir(unit), outDir, name)
	}
	rel, err := filepath.Rel(root, filepath.Dir(unit))
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = ""
	}
	return filepath.Join(outDir, rel, name)
}

// importSpecifier is the relative module specifier from one generated file
// to another, without the .ts extension.
func importSpecifier(from, to string) string {
	rel, err := filepath.Rel(filepath.Dir(from), to)
	if err != nil {
		rel = to
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, ".ts"))
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel
}

func writeIfChanged(path string, data []byte) (bool, error) {
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	// #nosec G306 -- generated sources are meant to be readable
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
