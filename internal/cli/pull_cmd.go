// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// pull_cmd.go - The "pull" command.

package cli

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-ollama/internal/ollama"
)

// HandlePull downloads every named model in parallel.
//
// On a terminal each model gets a progress bar; Ctrl-C cancels all pulls.
// Otherwise progress is printed as plain lines. With --json nothing is
// printed until every pull has finished.
func HandlePull(app *App) error {
	p := NewArgParser(app.Args.Raw, "insecure")
	names := p.Positional()
	if len(names) == 0 {
		return ErrMissingArgument("model", "rigrun-ollama pull llama3.2")
	}
	insecure := p.BoolFlag("insecure") || app.Config.Pull.Insecure

	ctx, stop := app.SignalContext()
	defer stop()

	if app.Args.JSON {
		return pullJSON(ctx, app, names, insecure)
	}
	if app.Interactive() && !app.Args.Quiet {
		return pullInteractive(ctx, app, names, insecure)
	}
	return pullPlain(ctx, app, names, insecure)
}

// pullJSON runs the pulls through the async orchestrator, which honours the
// configured concurrency limit.
func pullJSON(ctx context.Context, app *App, names []string, insecure bool) error {
	results, err := app.Client.PullModelsAsync(ctx, names, insecure).Wait(ctx)
	if err != nil {
		return err
	}

	data := make([]TransferData, len(results))
	for i, r := range results {
		data[i] = transferData(r)
	}
	if err := pullOutcome(results); err != nil {
		NewJSONErrorResponse("pull", err).WithData(data).Fprint(app.Streams.Stdout)
		return &printedError{err: err}
	}
	return NewJSONResponse("pull", data).Fprint(app.Streams.Stdout)
}

func pullInteractive(ctx context.Context, app *App, names []string, insecure bool) error {
	var handles []*ollama.Handle
	view := newPullView(names, func() {
		for _, h := range handles {
			h.Cancel()
		}
	})
	prog := tea.NewProgram(view,
		tea.WithInput(app.Streams.Stdin),
		tea.WithOutput(app.Streams.Stdout),
	)

	handles, err := app.Client.PullModelsParallel(ctx, names, insecure, ollama.Handler{
		OnEvent: func(ev ollama.Event) error {
			if p, ok := ev.(ollama.Progress); ok {
				prog.Send(pullProgressMsg{progress: p})
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	for _, h := range handles {
		go func() {
			res, err := h.Wait(context.Background())
			prog.Send(pullDoneMsg{name: h.Operation(), result: res, err: err})
		}()
	}

	if _, err := prog.Run(); err != nil {
		for _, h := range handles {
			h.Cancel()
		}
		return fmt.Errorf("progress display failed: %w", err)
	}
	return pullOutcome(waitAll(handles))
}

func pullPlain(ctx context.Context, app *App, names []string, insecure bool) error {
	out := app.Streams.Stdout
	printer := newPlainPullPrinter()
	var mu sync.Mutex

	handles, err := app.Client.PullModelsParallel(ctx, names, insecure, ollama.Handler{
		OnEvent: func(ev ollama.Event) error {
			p, ok := ev.(ollama.Progress)
			if !ok || app.Args.Quiet {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if line := printer.line(p); line != "" {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	results := waitAll(handles)
	for _, r := range results {
		fmt.Fprintf(out, "%s: %s\n", r.Operation, outcomeLine(r, r.Err))
	}
	return pullOutcome(results)
}

// waitAll collects every handle's result in order.
func waitAll(handles []*ollama.Handle) []ollama.Result {
	results := make([]ollama.Result, len(handles))
	for i, h := range handles {
		res, _ := h.Wait(context.Background())
		if res.Operation == "" {
			res.Operation = h.Operation()
		}
		results[i] = res
	}
	return results
}

// pullOutcome turns per-model results into the command's error: nil when
// all succeeded, ErrCancelled when nothing failed but something was
// cancelled, and a PullFailedError otherwise.
func pullOutcome(results []ollama.Result) error {
	var failed []string
	cancelled := 0
	for _, r := range results {
		switch r.Outcome {
		case ollama.OutcomeFailure:
			failed = append(failed, r.Operation)
		case ollama.OutcomeCancelled:
			cancelled++
		}
	}
	switch {
	case len(failed) > 0:
		return &PullFailedError{Failed: failed, Total: len(results)}
	case cancelled > 0:
		return ollama.ErrCancelled
	}
	return nil
}

func transferData(r ollama.Result) TransferData {
	return TransferData{
		Operation:  r.Operation,
		Outcome:    r.Outcome.String(),
		DurationMs: r.DurationMs(),
		Error:      r.ErrorMessage,
	}
}
