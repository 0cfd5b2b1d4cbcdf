// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// health_cmd.go - The "health" command.

package cli

import (
	"fmt"
	"time"

	"github.com/jeranaias/rigrun-ollama/internal/util"
)

// HandleHealth checks that the server answers and counts its models. It
// fails with a network exit code when the server is down.
func HandleHealth(app *App) error {
	ctx, stop := app.SignalContext()
	defer stop()

	data := HealthData{URL: app.Config.Ollama.URL}

	start := time.Now()
	err := app.Client.CheckRunning(ctx)
	latency := time.Since(start)
	data.LatencyMs = latency.Milliseconds()
	if err == nil {
		data.Running = true
		if models, listErr := app.Client.ListModels(ctx); listErr == nil {
			data.Models = len(models)
		} else {
			app.Logger.Warn("model list failed", "error", listErr)
		}
	}

	if app.Args.JSON {
		if err != nil {
			NewJSONErrorResponse("health", err).WithData(data).Fprint(app.Streams.Stdout)
			return &printedError{err: err}
		}
		return NewJSONResponse("health", data).Fprint(app.Streams.Stdout)
	}

	out := app.Streams.Stdout
	fmt.Fprintln(out, renderField("Server", data.URL))
	if err != nil {
		fmt.Fprintln(out, RenderLabel("Status")+RenderStatus("fail"))
		return err
	}
	fmt.Fprintln(out, RenderLabel("Status")+RenderStatus("ok"))
	fmt.Fprintln(out, renderField("Latency", util.FormatDuration(latency)))
	fmt.Fprintln(out, renderField("Models", fmt.Sprintf("%d", data.Models)))
	return nil
}
