// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the Ollama API.
//
// Streamed calls (generate, chat and model pulls) run on their own goroutine
// and report through a Handler. Each call returns a Handle that can cancel
// the transfer mid-stream. Every transfer ends in exactly one terminal
// notification: Success, Failure or Cancelled through OnComplete, or a
// transport error through OnError.
//
// # Key Types
//
//   - Client: entry point for every endpoint
//   - Handler: callbacks for events and the terminal notification
//   - Handle: cancel, poll and wait on one transfer
//   - Event: TextChunk, ChatChunk, Progress, Done or ServerError
//   - Result: outcome and duration of a finished transfer
//   - Future: eventual value of an asynchronous call
//   - FunctionRequest, FunctionResponse: tool routing over chat
//
// # Usage
//
// Pull a model and print progress:
//
//	client := ollama.NewClient()
//	res, err := client.PullModel(ctx, "llama3.2", false, func(p ollama.Progress) {
//	    fmt.Println(p.FormattedProgress())
//	})
//	if ollama.IsCancelled(err) {
//	    return
//	}
//
// Stream a chat and stop it early:
//
//	handle, err := client.ChatStream(ctx, req, ollama.Handler{
//	    OnEvent: func(ev ollama.Event) error {
//	        if c, ok := ev.(ollama.ChatChunk); ok {
//	            fmt.Print(c.Content)
//	        }
//	        return nil
//	    },
//	})
//	...
//	handle.Cancel()
//
// Pull several models at once; results come back in input order:
//
//	results, _ := client.PullModelsAsync(ctx, names, false).Wait(ctx)
//
// Embed a long document in sentence-sized chunks:
//
//	resp, err := client.EmbedChunked(ctx, "nomic-embed-text", doc, chunk.SentenceConfig(500))
package ollama
