// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// generate_cmd.go - The "generate" command.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-ollama/internal/ollama"
	"github.com/jeranaias/rigrun-ollama/internal/prompt"
)

// HandleGenerate runs a single prompt. The prompt comes from the arguments,
// or from stdin when none are given and stdin is not a terminal.
//
// Output modes:
//   - --json: one JSON document after the stream ends
//   - --schema: a structured reply, highlighted on a terminal
//   - terminal with markdown enabled: collected, then rendered
//   - otherwise: streamed as it arrives
func HandleGenerate(app *App) error {
	p := NewArgParser(app.Args.Raw, "raw")

	text := p.Rest(0)
	if text == "" && !app.stdinIsTerminal() {
		data, err := io.ReadAll(app.Streams.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return ErrMissingArgument("prompt", `rigrun-ollama generate "Why is the sky blue?"`)
	}

	req := ollama.GenerateRequest{
		Model:  app.Model(),
		Prompt: text,
		System: p.Flag("system"),
	}

	ctx, stop := app.SignalContext()
	defer stop()

	if path := p.Flag("schema"); path != "" {
		return generateStructured(ctx, app, req, path)
	}
	if app.Args.JSON {
		out, res, err := app.Client.CollectGenerate(ctx, req, nil)
		if err != nil {
			return err
		}
		return NewJSONResponse("generate", generateData(req.Model, out, res)).Fprint(app.Streams.Stdout)
	}

	markdown := app.Config.UI.Markdown && !p.BoolFlag("raw") && IsStdoutTTY()
	_, err := streamReply(app, markdown, func(h ollama.Handler) (*ollama.Handle, error) {
		return app.Client.GenerateStream(ctx, req, h)
	})
	return err
}

// streamReply starts a generate or chat stream and prints it. With markdown
// the text is collected and rendered once complete; otherwise chunks are
// written as they arrive. It returns the text received, which is partial
// when the transfer did not succeed.
func streamReply(app *App, markdown bool, start func(ollama.Handler) (*ollama.Handle, error)) (string, error) {
	out := app.Streams.Stdout
	acc := ollama.NewStreamAccumulator()

	handle, err := start(ollama.Handler{
		OnEvent: func(ev ollama.Event) error {
			acc.Add(ev)
			if markdown {
				return nil
			}
			switch ev := ev.(type) {
			case ollama.TextChunk:
				_, err := io.WriteString(out, ev.Content)
				return err
			case ollama.ChatChunk:
				_, err := io.WriteString(out, ev.Content)
				return err
			}
			return nil
		},
	})
	if err != nil {
		return "", err
	}

	res, err := handle.Wait(context.Background())
	text := acc.Content()
	switch {
	case markdown && text != "":
		renderer := newMarkdownRenderer(app.Config.UI.Theme, GetTerminalWidth())
		fmt.Fprint(out, renderMarkdown(renderer, text))
	case !markdown && text != "" && !strings.HasSuffix(text, "\n"):
		fmt.Fprintln(out)
	}

	app.Logger.Debug("stream finished",
		"operation", res.Operation,
		"outcome", res.Outcome.String(),
		"chunks", acc.Chunks(),
		"duration", res.Duration)
	return text, err
}

// generateStructured asks for a reply matching the schema in path.
func generateStructured(ctx context.Context, app *App, req ollama.GenerateRequest, path string) error {
	schema, err := prompt.LoadSchema(path)
	if err != nil {
		return &UsageError{Reason: err.Error()}
	}

	resp, err := app.Client.GenerateJSON(ctx, req, schema)
	if err != nil {
		return err
	}

	if app.Args.JSON {
		return NewJSONResponse("generate", GenerateData{
			Model:      resp.Model,
			Response:   resp.Response,
			Outcome:    ollama.OutcomeSuccess.String(),
			DurationMs: resp.TotalTime().Milliseconds(),
		}).Fprint(app.Streams.Stdout)
	}

	body := prompt.Prettify(resp.Response)
	if ColorsEnabled() {
		body = highlightJSON(body)
	}
	fmt.Fprintln(app.Streams.Stdout, strings.TrimRight(body, "\n"))
	if !prompt.IsValidJSON(resp.Response) && !app.Args.Quiet {
		fmt.Fprintln(app.Streams.Stderr, WarningStyle.Render("warning: reply is not valid JSON"))
	}
	return nil
}

func generateData(model, text string, res ollama.Result) GenerateData {
	return GenerateData{
		Model:      model,
		Response:   text,
		Operation:  res.Operation,
		Outcome:    res.Outcome.String(),
		DurationMs: res.DurationMs(),
	}
}
