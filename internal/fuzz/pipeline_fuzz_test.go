package fuzztests

import (
	"context"
	"testing"
	"time"

	"gqlembed/internal/compose"
	"gqlembed/internal/extract"
	"gqlembed/internal/host"
	"gqlembed/internal/source"
)

// pipelineTimeout bounds one input; exceeding it points at a loop in
// extraction or composition.
const pipelineTimeout = 5 * time.Second

func FuzzExtractAndCompose(f *testing.F) {
	addHostSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		done := make(chan struct{})
		go func() {
			defer close(done)
			runPipeline(t, input)
		}()
		select {
		case <-done:
		case <-time.After(pipelineTimeout):
			t.Fatalf("pipeline did not finish within %s on %d bytes", pipelineTimeout, len(input))
		}
	})
}

func runPipeline(t *testing.T, input []byte) {
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("/fuzz/input.ts", input))

	a, err := host.NewParser().Parse(context.Background(), file)
	if err != nil {
		return
	}
	defer a.Close()

	prog := host.NewProgram()
	prog.Set(a)
	spans := extract.New("gql", nil).Extract(a)
	for _, s := range spans {
		if s.Host.Start > s.Host.End || int(s.Host.End) > len(input) {
			t.Errorf("span %s outside the host file", s)
		}
		if s.Map != nil && s.Map.Len() != len(s.Text) {
			t.Errorf("span %s: map length %d, text length %d", s, s.Map.Len(), len(s.Text))
		}
	}

	p := compose.Build(spans, prog, compose.Options{})
	for _, n := range p.Nodes {
		c := p.Compose(n)
		if c == nil {
			t.Errorf("no composition for %s", n.Label())
		}
	}
}
