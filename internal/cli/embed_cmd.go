// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// embed_cmd.go - The "embed" command.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-ollama/internal/chunk"
	"github.com/jeranaias/rigrun-ollama/internal/ollama"
	"github.com/jeranaias/rigrun-ollama/internal/util"
)

// HandleEmbed embeds text from the arguments or stdin. Without --chunk the
// [embedding.chunking] settings apply; --chunk overrides them for this run.
// The model is -m when given, otherwise embedding.model.
func HandleEmbed(app *App) error {
	p := NewArgParser(app.Args.Raw)

	text := p.Rest(0)
	if text == "" && !app.stdinIsTerminal() {
		data, err := io.ReadAll(app.Streams.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read text from stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return ErrMissingArgument("text", `rigrun-ollama embed "some text" --chunk sentence`)
	}

	ctx, stop := app.SignalContext()
	defer stop()

	var (
		resp *ollama.ChunkedEmbedResponse
		err  error
	)
	if name := p.Flag("chunk"); name != "" {
		strategy, perr := chunk.ParseStrategy(name)
		if perr != nil {
			return &UsageError{Reason: perr.Error(), Example: "rigrun-ollama embed FILE --chunk paragraph"}
		}
		defaults := app.Config.Embedding.Chunking
		cfg := chunk.Config{
			Enabled:  true,
			Strategy: strategy,
			Size:     p.IntFlag("size", defaults.ChunkSize),
			Overlap:  p.IntFlag("overlap", defaults.OverlapSize),
		}
		if strategy != chunk.FixedSize || (p.Flag("overlap") == "" && cfg.Overlap >= cfg.Size) {
			cfg.Overlap = 0
		}
		resp, err = app.Client.EmbedChunked(ctx, app.Args.Model, text, cfg)
	} else {
		resp, err = app.Client.EmbedText(ctx, app.Args.Model, text)
	}
	if err != nil {
		return err
	}

	if app.Args.JSON {
		data := EmbedData{Model: resp.Model}
		for i, c := range resp.Chunks {
			data.Chunks = append(data.Chunks, EmbedChunkData{Index: i, Text: c, Embedding: resp.Embeddings[i]})
		}
		return NewJSONResponse("embed", data).Fprint(app.Streams.Stdout)
	}

	out := app.Streams.Stdout
	dims := 0
	if len(resp.Embeddings) > 0 {
		dims = len(resp.Embeddings[0])
	}
	fmt.Fprintf(out, "%s %d chunk(s), %d dimensions\n", HighlightStyle.Render(resp.Model), len(resp.Chunks), dims)
	for i, c := range resp.Chunks {
		fmt.Fprintf(out, "%s %s\n",
			DimStyle.Render(fmt.Sprintf("%3d", i)),
			util.TruncateRunes(strings.Join(strings.Fields(c), " "), 60))
	}
	return nil
}
