// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat_cmd.go - The "chat" command: one-shot or an interactive session.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/peterh/liner"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/rigrun-ollama/internal/catalog"
	"github.com/jeranaias/rigrun-ollama/internal/config"
	"github.com/jeranaias/rigrun-ollama/internal/ollama"
)

// HandleChat sends one message when one is given (or piped on stdin) and
// otherwise opens an interactive session.
func HandleChat(app *App) error {
	p := NewArgParser(app.Args.Raw)
	system := p.Flag("system")
	message := p.Rest(0)

	if message == "" && !app.stdinIsTerminal() {
		data, err := io.ReadAll(app.Streams.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read message from stdin: %w", err)
		}
		message = strings.TrimSpace(string(data))
		if message == "" {
			return ErrMissingArgument("message", `echo "hello" | rigrun-ollama chat`)
		}
	}

	if message != "" {
		return chatOnce(app, system, message)
	}
	if app.Args.JSON {
		return &UsageError{Reason: "interactive chat does not support --json; pass a message"}
	}
	if err := RequiresTTY("chat"); err != nil {
		return err
	}
	return runChatSession(app, system)
}

func chatOnce(app *App, system, message string) error {
	ctx, stop := app.SignalContext()
	defer stop()

	s := newChatSession(app.Model(), system)
	req := s.request(message)

	if app.Args.JSON {
		out, res, err := app.Client.CollectChat(ctx, req, nil)
		if err != nil {
			return err
		}
		return NewJSONResponse("chat", generateData(req.Model, out, res)).Fprint(app.Streams.Stdout)
	}

	markdown := app.Config.UI.Markdown && IsStdoutTTY()
	_, err := streamReply(app, markdown, func(h ollama.Handler) (*ollama.Handle, error) {
		return app.Client.ChatStream(ctx, req, h)
	})
	return err
}

// =============================================================================
// SESSION STATE
// =============================================================================

// chatSession holds the conversation of an interactive chat.
type chatSession struct {
	model    string
	system   string
	messages []ollama.Message

	turns   int
	started time.Time
}

func newChatSession(model, system string) *chatSession {
	return &chatSession{model: model, system: system, started: time.Now()}
}

// request appends the user message and builds the chat request for the
// whole conversation.
func (s *chatSession) request(input string) ollama.ChatRequest {
	s.messages = append(s.messages, ollama.NewUserMessage(norm.NFC.String(input)))

	msgs := make([]ollama.Message, 0, len(s.messages)+1)
	if s.system != "" {
		msgs = append(msgs, ollama.NewSystemMessage(s.system))
	}
	msgs = append(msgs, s.messages...)
	return ollama.ChatRequest{Model: s.model, Messages: msgs}
}

// finish records the reply, or drops the unanswered user message when the
// turn failed or was cancelled.
func (s *chatSession) finish(reply string, err error) {
	if err != nil {
		if len(s.messages) > 0 {
			s.messages = s.messages[:len(s.messages)-1]
		}
		return
	}
	s.messages = append(s.messages, ollama.NewAssistantMessage(reply))
	s.turns++
}

func (s *chatSession) clear() {
	s.messages = nil
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// chatInput wraps liner with a history file kept in the config directory.
type chatInput struct {
	line        *liner.State
	historyFile string
}

func newChatInput() *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &chatInput{line: line, historyFile: filepath.Join(dir, "chat_history")}

	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *chatInput) read(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

// close saves the history (0600, it may contain anything the user typed)
// and restores the terminal.
func (in *chatInput) close() {
	defer in.line.Close()
	if err := os.MkdirAll(filepath.Dir(in.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	in.line.WriteHistory(f)
}

// =============================================================================
// REPL
// =============================================================================

func runChatSession(app *App, system string) error {
	out := app.Streams.Stdout
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.LoadCatalog(ctx)
	if mins := app.Config.Models.RefreshIntervalMins; mins > 0 {
		r := catalog.NewRefresher(time.Duration(mins)*time.Minute, app.Client.RefreshModels, app.Logger)
		go r.Run(ctx)
	}
	if err := config.Watch(ctx, app.ConfigPath, func(cfg *config.Config, err error) {
		if err != nil {
			app.Logger.Warn("config reload failed", "error", err)
			return
		}
		config.SetGlobal(cfg)
		app.Logger.Info("config reloaded", "path", app.ConfigPath)
	}); err != nil {
		app.Logger.Debug("config watch unavailable", "error", err)
	}

	s := newChatSession(app.Model(), system)
	if !app.Client.IsModelAvailable(s.model) {
		fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("Model %s is not installed; run: rigrun-ollama pull %s", s.model, s.model)))
	}

	// SIGINT while a reply streams cancels that reply only.
	var current atomic.Pointer[ollama.Handle]
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-sigCh:
				if h := current.Load(); h != nil {
					h.Cancel()
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	input := newChatInput()
	defer input.close()

	fmt.Fprintln(out, TitleStyle.Render("rigrun-ollama chat")+DimStyle.Render("  model "+s.model+", /help for commands"))

	for {
		text, err := input.read(HighlightStyle.Render(s.model) + "> ")
		if err != nil {
			// Ctrl-C at the prompt, Ctrl-D or a closed terminal.
			fmt.Fprintln(out)
			printChatSummary(out, s)
			return nil
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if !handleSlashCommand(app, s, text) {
				printChatSummary(out, s)
				return nil
			}
			continue
		}

		req := s.request(text)
		markdown := config.Global().UI.Markdown && IsStdoutTTY()
		reply, err := streamReply(app, markdown, func(h ollama.Handler) (*ollama.Handle, error) {
			handle, err := app.Client.ChatStream(ctx, req, h)
			if err == nil {
				current.Store(handle)
			}
			return handle, err
		})
		current.Store(nil)
		s.finish(reply, err)

		switch {
		case err == nil:
		case ollama.IsCancelled(err):
			fmt.Fprintln(out, WarningStyle.Render("[Cancelled]"))
		default:
			fmt.Fprintf(out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		fmt.Fprintln(out)
	}
}

// handleSlashCommand runs a /command and reports whether the session
// continues.
func handleSlashCommand(app *App, s *chatSession, text string) bool {
	out := app.Streams.Stdout
	fields := strings.Fields(text)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/exit", "/quit", "/q":
		return false

	case "/clear":
		s.clear()
		fmt.Fprintln(out, DimStyle.Render("Conversation cleared."))

	case "/model":
		if len(args) == 0 {
			fmt.Fprintln(out, renderField("Model", s.model))
			break
		}
		if !app.Client.IsModelAvailable(args[0]) {
			fmt.Fprintln(out, WarningStyle.Render("Model "+args[0]+" is not installed"))
			break
		}
		s.model = args[0]
		fmt.Fprintln(out, renderField("Model", s.model))

	case "/models":
		for _, m := range app.Client.AvailableModels() {
			marker := "  "
			if m.Name == s.model {
				marker = "* "
			}
			fmt.Fprintln(out, marker+m.Name)
		}

	case "/help":
		fmt.Fprintln(out, "/exit      leave the session")
		fmt.Fprintln(out, "/clear     forget the conversation")
		fmt.Fprintln(out, "/model N   switch to model N")
		fmt.Fprintln(out, "/models    list installed models")

	default:
		fmt.Fprintln(out, ErrorStyle.Render("Unknown command "+cmd)+DimStyle.Render("  (try /help)"))
	}
	return true
}

func printChatSummary(out io.Writer, s *chatSession) {
	fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("%d turns in %s", s.turns, time.Since(s.started).Round(time.Second))))
}
