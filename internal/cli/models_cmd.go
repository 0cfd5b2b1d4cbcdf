// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models_cmd.go - The "models", "show" and "delete" commands.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-ollama/internal/catalog"
	"github.com/jeranaias/rigrun-ollama/internal/ollama"
	"github.com/jeranaias/rigrun-ollama/internal/util"
)

const modelNameWidth = 36

// =============================================================================
// MODELS
// =============================================================================

// HandleModels lists installed models. The list comes from the server, or
// from the last saved snapshot when the server is unreachable; --refresh
// requires the server.
func HandleModels(app *App) error {
	p := NewArgParser(app.Args.Raw, "refresh")
	ctx, stop := app.SignalContext()
	defer stop()

	var err error
	if p.BoolFlag("refresh") {
		err = app.Client.RefreshModels(ctx)
	} else {
		err = app.Client.Init(ctx)
	}
	if err != nil {
		return err
	}

	models := app.Client.AvailableModels()
	if app.Args.JSON {
		data := make([]ModelData, len(models))
		for i, m := range models {
			data[i] = ModelData{
				Name:          m.Name,
				Size:          m.Size,
				Digest:        m.Digest,
				ModifiedAt:    m.ModifiedAt,
				Family:        m.Family,
				ParameterSize: m.ParameterSize,
				Quantization:  m.Quantization,
			}
		}
		return NewJSONResponse("models", data).Fprint(app.Streams.Stdout)
	}

	if len(models) == 0 {
		fmt.Fprintln(app.Streams.Stdout, DimStyle.Render("No models installed. Try: rigrun-ollama pull llama3.2"))
		return nil
	}
	printModelTable(app.Streams.Stdout, models, time.Now())
	return nil
}

// printModelTable writes one row per model. Names are cut and padded by
// display width so wide characters keep the columns aligned.
func printModelTable(w io.Writer, models []catalog.Model, now time.Time) {
	header := util.PadWidth("NAME", modelNameWidth) + "  " +
		fmt.Sprintf("%-10s  %-8s  %-8s  %s", "SIZE", "PARAMS", "QUANT", "MODIFIED")
	fmt.Fprintln(w, DimStyle.Render(header))

	for _, m := range models {
		name := util.PadWidth(util.TruncateWidth(m.Name, modelNameWidth), modelNameWidth)
		modified := "-"
		if !m.ModifiedAt.IsZero() {
			modified = util.FormatDuration(now.Sub(m.ModifiedAt)) + " ago"
		}
		fmt.Fprintf(w, "%s  %-10s  %-8s  %-8s  %s\n",
			HighlightStyle.Render(name),
			util.FormatBytes(m.Size),
			orDash(m.ParameterSize),
			orDash(m.Quantization),
			modified)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// =============================================================================
// SHOW
// =============================================================================

// HandleShow prints a model's details. When the server is unreachable the
// entry from the saved catalogue is shown instead, if there is one.
func HandleShow(app *App) error {
	p := NewArgParser(app.Args.Raw)
	name := p.PositionalAt(0)
	if name == "" {
		return ErrMissingArgument("model", "rigrun-ollama show llama3.2")
	}

	ctx, stop := app.SignalContext()
	defer stop()

	info, err := app.Client.ShowModel(ctx, name)
	if err != nil {
		if ollama.IsUnreachable(err) {
			if m, ok := savedModel(ctx, app, name); ok {
				return showCatalogModel(app, m)
			}
		}
		return err
	}
	if app.Args.JSON {
		return NewJSONResponse("show", info).Fprint(app.Streams.Stdout)
	}

	out := app.Streams.Stdout
	fmt.Fprintln(out, TitleStyle.Render(name))
	fmt.Fprintln(out, renderField("Family", orDash(info.Details.Family)))
	fmt.Fprintln(out, renderField("Parameters", orDash(info.Details.ParameterSize)))
	fmt.Fprintln(out, renderField("Quantization", orDash(info.Details.QuantizationLevel)))
	fmt.Fprintln(out, renderField("Format", orDash(info.Details.Format)))
	if lic := firstLine(info.License); lic != "" {
		fmt.Fprintln(out, renderField("License", lic))
	}
	if params := strings.TrimSpace(info.Parameters); params != "" {
		fmt.Fprintln(out, SectionStyle.Render("Parameters"))
		fmt.Fprintln(out, params)
	}
	return nil
}

// savedModel looks name up in the catalogue restored from the snapshot.
func savedModel(ctx context.Context, app *App, name string) (catalog.Model, bool) {
	if err := app.Client.Init(ctx); err != nil {
		return catalog.Model{}, false
	}
	return app.Client.ModelInfo(name)
}

func showCatalogModel(app *App, m catalog.Model) error {
	fmt.Fprintln(app.Streams.Stderr, WarningStyle.Render("Ollama is not reachable, showing the saved catalogue entry."))
	if app.Args.JSON {
		return NewJSONResponse("show", ModelData{
			Name:          m.Name,
			Size:          m.Size,
			Digest:        m.Digest,
			ModifiedAt:    m.ModifiedAt,
			Family:        m.Family,
			ParameterSize: m.ParameterSize,
			Quantization:  m.Quantization,
		}).Fprint(app.Streams.Stdout)
	}

	out := app.Streams.Stdout
	fmt.Fprintln(out, TitleStyle.Render(m.Name))
	fmt.Fprintln(out, renderField("Family", orDash(m.Family)))
	fmt.Fprintln(out, renderField("Parameters", orDash(m.ParameterSize)))
	fmt.Fprintln(out, renderField("Quantization", orDash(m.Quantization)))
	fmt.Fprintln(out, renderField("Size", util.FormatBytes(m.Size)))
	if m.Digest != "" {
		fmt.Fprintln(out, renderField("Digest", util.TruncateRunes(m.Digest, 19)))
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return util.TruncateRunes(s, 80)
}

// =============================================================================
// DELETE
// =============================================================================

// HandleDelete removes a model after confirmation. Unless --force is given
// the name is checked against the catalogue first, so a typo fails without
// a server round trip.
func HandleDelete(app *App) error {
	p := NewArgParser(app.Args.Raw, "yes", "y", "force")
	name := p.PositionalAt(0)
	if name == "" {
		return ErrMissingArgument("model", "rigrun-ollama delete llama3.2 --yes")
	}
	force := p.BoolFlag("force")

	ctx, stop := app.SignalContext()
	defer stop()

	if !force {
		app.LoadCatalog(ctx)
	}

	confirmed, err := RequireConfirmation(app.Streams.Stdin, app.Streams.Stderr, "delete "+name, ConfirmationOptions{
		ConfirmFlag: p.BoolFlag("yes", "y"),
		JSONMode:    app.Args.JSON,
		Interactive: app.stdinIsTerminal(),
	})
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Fprintln(app.Streams.Stderr, DimStyle.Render("Cancelled."))
		return nil
	}

	if err := app.Client.DeleteModel(ctx, name, !force); err != nil {
		return err
	}

	if app.Args.JSON {
		return NewJSONResponse("delete", map[string]string{"model": name}).Fprint(app.Streams.Stdout)
	}
	if !app.Args.Quiet {
		fmt.Fprintf(app.Streams.Stdout, "%s deleted %s\n", RenderStatus("ok"), name)
	}
	return nil
}
