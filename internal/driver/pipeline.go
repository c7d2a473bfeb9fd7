// Package driver runs the batch pipeline behind the CLI: load and extract
// every source unit in parallel, compose the project, validate each
// document against the schema and generate types from valid documents.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"gqlembed/internal/compose"
	"gqlembed/internal/diag"
	"gqlembed/internal/extract"
	"gqlembed/internal/host"
	"gqlembed/internal/manifest"
	"gqlembed/internal/observ"
	"gqlembed/internal/project"
	"gqlembed/internal/schema"
	"gqlembed/internal/source"
	"gqlembed/internal/validate"
)

// ErrNoSchema is returned by runs that need a schema when none is configured.
var ErrNoSchema = errors.New("no schema configured: set [schema] in gqlembed.toml or pass --schema")

type Options struct {
	Config *project.Config
	// Files overrides the files discovered from Config.
	Files    []string
	Schema   *schema.Manager
	Jobs     int
	Logger   logrus.FieldLogger
	Progress ProgressSink
	Timer    *observ.Timer
}

func (o *Options) jobs(n int) int {
	jobs := o.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, n))
}

func (o *Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

// Result is the outcome of a run. Diagnostics are deduplicated and sorted.
type Result struct {
	FileSet     *source.FileSet
	Files       []string
	Spans       []*extract.EmbeddedSpan
	Project     *compose.Project
	Snapshot    *schema.Snapshot
	Results     map[*compose.Node]manifest.Result
	Diagnostics []diag.Diagnostic
	Generated   []GeneratedFile

	// unitDiags are the diagnostics not owned by any definition: load
	// failures and spans without definitions.
	unitDiags []diag.Diagnostic
}

func (r *Result) HasErrors() bool {
	return diag.HasErrors(r.Diagnostics)
}

func (r *Result) finish() {
	r.Diagnostics = diag.Dedup(r.Diagnostics)
	diag.SortDiagnostics(r.Diagnostics)
}

type unitResult struct {
	spans []*extract.EmbeddedSpan
	diags []diag.Diagnostic
}

// Extract loads the project files, extracts embedded documents and builds
// the composition graph.
func Extract(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	log := opts.logger()
	files := opts.Files
	if files == nil {
		var err error
		if files, err = cfg.Files(); err != nil {
			return nil, err
		}
	}
	res := &Result{FileSet: source.NewFileSetWithBase(cfg.Root), Files: files}

	// FileSet не потокобезопасен: читаем файлы последовательно
	ids := make([]source.FileID, len(files))
	loadErrs := make([]error, len(files))
	for i, path := range files {
		ids[i], loadErrs[i] = res.FileSet.Load(path)
		emit(opts.Progress, Event{File: path, Stage: StageExtract, Status: StatusQueued})
	}

	parser := host.NewParser()
	prog := host.NewProgram()
	ex := extract.New(cfg.Tag, nil)
	units := make([]unitResult, len(files))
	asts := make([]*host.AST, len(files))

	err := opts.Timer.Measure("extract", func() (string, error) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.jobs(len(files)))
		for i, path := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				emit(opts.Progress, Event{File: path, Stage: StageExtract, Status: StatusWorking})
				if loadErrs[i] != nil {
					units[i].diags = append(units[i].diags, diag.NewProject(diag.IOLoadFileError,
						fmt.Sprintf("failed to load %s: %v", path, loadErrs[i])))
					emit(opts.Progress, Event{File: path, Stage: StageExtract, Status: StatusError, Err: loadErrs[i]})
					return nil
				}
				a, err := parser.Parse(gctx, res.FileSet.Get(ids[i]))
				if err != nil {
					if cerr := gctx.Err(); cerr != nil {
						return cerr
					}
					// хост не разобрался: документов в файле нет
					log.WithError(err).WithField("path", path).Debug("host parse failed")
					emit(opts.Progress, Event{File: path, Stage: StageExtract, Status: StatusDone, Elapsed: time.Since(start)})
					return nil
				}
				asts[i] = a
				prog.Set(a)
				units[i].spans = ex.Extract(a)
				emit(opts.Progress, Event{File: path, Stage: StageExtract, Status: StatusDone, Elapsed: time.Since(start)})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		for _, u := range units {
			res.Spans = append(res.Spans, u.spans...)
			res.unitDiags = append(res.unitDiags, u.diags...)
		}
		return fmt.Sprintf("%d files, %d documents", len(files), len(res.Spans)), nil
	})
	defer func() {
		for _, a := range asts {
			a.Close()
		}
	}()
	if err != nil {
		return nil, err
	}

	_ = opts.Timer.Measure("compose", func() (string, error) {
		res.Project = compose.Build(res.Spans, prog, compose.Options{GlobalFragments: cfg.GlobalFragments})
		return fmt.Sprintf("%d definitions", len(res.Project.Nodes)), nil
	})
	res.unitDiags = append(res.unitDiags, res.Project.Loose...)
	res.Diagnostics = append(res.Diagnostics, res.unitDiags...)
	res.Results = make(map[*compose.Node]manifest.Result, len(res.Project.Nodes))
	for _, n := range res.Project.Nodes {
		c := res.Project.Compose(n)
		res.Results[n] = manifest.Result{Composition: c, Diagnostics: c.Diags}
		res.Diagnostics = append(res.Diagnostics, c.Diags...)
	}
	log.WithFields(logrus.Fields{
		"files":     len(files),
		"documents": len(res.Spans),
		"nodes":     len(res.Project.Nodes),
	}).Debug("extraction finished")
	res.finish()
	return res, nil
}

// Validate runs Extract, acquires the schema and validates every document.
// A schema that cannot be acquired aborts the run.
func Validate(ctx context.Context, opts Options) (*Result, error) {
	res, err := Extract(ctx, opts)
	if err != nil {
		return nil, err
	}
	if opts.Schema == nil || !opts.Schema.Configured() {
		return nil, ErrNoSchema
	}
	err = opts.Timer.Measure("schema", func() (string, error) {
		snap, err := opts.Schema.Acquire(ctx)
		if err != nil {
			return "", err
		}
		res.Snapshot = snap
		return snap.Origin, nil
	})
	if err != nil {
		return nil, err
	}

	byFile := nodesByFile(res.Project)
	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	type fileResult struct {
		nodes   []*compose.Node
		results []manifest.Result
	}
	out := make([]fileResult, len(paths))
	err = opts.Timer.Measure("validate", func() (string, error) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.jobs(len(paths)))
		for i, path := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				emit(opts.Progress, Event{File: path, Stage: StageValidate, Status: StatusWorking})
				failed := false
				for _, n := range byFile[path] {
					c := res.Results[n].Composition
					ds := validate.Validate(c, res.Snapshot)
					failed = failed || diag.HasErrors(ds)
					out[i].nodes = append(out[i].nodes, n)
					out[i].results = append(out[i].results, manifest.Result{Composition: c, Diagnostics: ds})
				}
				status := StatusDone
				if failed {
					status = StatusError
				}
				emit(opts.Progress, Event{File: path, Stage: StageValidate, Status: status, Elapsed: time.Since(start)})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d files", len(paths)), nil
	})
	if err != nil {
		return nil, err
	}

	// результаты проверки заменяют диагностики композиции целиком
	res.Diagnostics = append([]diag.Diagnostic(nil), res.unitDiags...)
	for _, fr := range out {
		for i, n := range fr.nodes {
			res.Results[n] = fr.results[i]
			res.Diagnostics = append(res.Diagnostics, fr.results[i].Diagnostics...)
		}
	}
	res.finish()
	return res, nil
}

// nodesByFile groups the documents of the project by the unit declaring them.
// Broken spans have no definitions to validate; their syntax errors are
// already part of the composition diagnostics.
func nodesByFile(p *compose.Project) map[string][]*compose.Node {
	out := make(map[string][]*compose.Node)
	for _, n := range p.Nodes {
		out[n.Span.Path] = append(out[n.Span.Path], n)
	}
	return out
}
