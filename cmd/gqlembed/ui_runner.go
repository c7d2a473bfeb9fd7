package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"gqlembed/internal/driver"
	"gqlembed/internal/ui"
)

type pipelineFunc func(ctx context.Context, opts driver.Options) (*driver.Result, error)

type pipelineOutcome struct {
	result *driver.Result
	err    error
}

// runPipeline runs fn over the project files, with the progress UI when the
// session asks for it.
func (s *session) runPipeline(ctx context.Context, title string, fn pipelineFunc) (*driver.Result, error) {
	files, err := s.cfg.Files()
	if err != nil {
		return nil, err
	}
	opts := s.driverOptions()
	opts.Files = files
	if !shouldUseTUI(s.ui) || len(files) == 0 {
		return fn(ctx, opts)
	}

	events := make(chan driver.Event, 256)
	outcomeCh := make(chan pipelineOutcome, 1)
	go func() {
		opts.Progress = driver.ChannelSink{Ch: events}
		res, err := fn(ctx, opts)
		outcomeCh <- pipelineOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, s.cfg.Root, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	if uiErr != nil {
		// модель больше не читает канал
		go func() {
			for range events {
			}
		}()
	}
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
