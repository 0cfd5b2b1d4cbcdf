// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and dispatch for rigrun-ollama.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdVersion
	CmdPull
	CmdGenerate
	CmdChat
	CmdModels
	CmdShow
	CmdDelete
	CmdHealth
	CmdEmbed
	CmdConfig
	CmdUnknown
)

var commandNames = map[Command]string{
	CmdHelp:     "help",
	CmdVersion:  "version",
	CmdPull:     "pull",
	CmdGenerate: "generate",
	CmdChat:     "chat",
	CmdModels:   "models",
	CmdShow:     "show",
	CmdDelete:   "delete",
	CmdHealth:   "health",
	CmdEmbed:    "embed",
	CmdConfig:   "config",
	CmdUnknown:  "unknown",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	URL        string
	Model      string
	JSON       bool
	Verbose    bool
	Quiet      bool

	// Name is the command word as typed, kept for error messages.
	Name string

	// Raw holds the arguments after the command word with global flags
	// removed. Each command parses its own flags from it.
	Raw []string
}

const usageText = `rigrun-ollama - streaming client for a local Ollama server

Usage:
  rigrun-ollama <command> [arguments] [flags]

Commands:
  pull <model>...            Download one or more models (in parallel)
    --insecure               Allow insecure registries
  generate <prompt>          Generate a completion (alias: gen)
    --schema FILE            Ask for JSON matching a JSON schema
    --system TEXT            System prompt
    --raw                    Print the stream as-is (no markdown rendering)
  chat [message]             One-shot chat, or an interactive session
    --system TEXT            System prompt
  models                     List local models (aliases: list, ls)
    --refresh                Ask the server instead of the cached catalogue
  show <model>               Show model details
  delete <model>             Delete a local model (alias: rm)
    -y, --yes                Do not ask for confirmation
    --force                  Skip the local catalogue check
  health                     Check that the server is reachable
  embed <text>               Embed text, split per [embedding.chunking]
    --chunk STRATEGY         fixed_size, sentence or paragraph
    --size N                 Maximum chunk length in characters
    --overlap N              Characters repeated between fixed_size chunks
  config [show|get|set|path|keys]
                             Inspect or change configuration
  version                    Show version information
  help                       Show this help

Global Flags:
  --config PATH              Config file (default: ~/.rigrun-ollama/config.toml)
  --url URL                  Ollama server URL
  -m, --model NAME           Model to use (overrides the configured default)
  --json                     Output a single JSON document
  -q, --quiet                Minimal output
  -v, --verbose              Debug logging on stderr

Environment:
  OLLAMA_HOST, RIGRUN_OLLAMA_URL, RIGRUN_OLLAMA_MODEL,
  RIGRUN_OLLAMA_API_KEY, RIGRUN_OLLAMA_LOG_LEVEL, NO_COLOR

Examples:
  rigrun-ollama pull llama3.2 nomic-embed-text
  rigrun-ollama generate "Why is the sky blue?" --model llama3.2
  rigrun-ollama generate "List three planets" --schema planets.json
  rigrun-ollama chat
  rigrun-ollama models --json
  rigrun-ollama delete old-model --yes
  rigrun-ollama config set ollama.default_model qwen2.5:7b

Chat commands:
  /exit, /quit    Leave the session
  /clear          Forget the conversation
  /model NAME     Switch model
  /models         List models

Version: %s
`

// PrintUsage prints the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "rigrun-ollama version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s\n", runtime.Version())
}

// =============================================================================
// PARSING
// =============================================================================

// Parse splits argv (without the program name) into the command and its
// arguments. Global flags may appear anywhere.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdHelp, args
	}

	args.Name = remaining[0]
	args.Raw = remaining[1:]

	switch strings.ToLower(remaining[0]) {
	case "help", "-h", "--help":
		return CmdHelp, args
	case "version", "--version":
		return CmdVersion, args
	case "pull":
		return CmdPull, args
	case "generate", "gen":
		return CmdGenerate, args
	case "chat":
		return CmdChat, args
	case "models", "list", "ls":
		return CmdModels, args
	case "show":
		return CmdShow, args
	case "delete", "rm":
		return CmdDelete, args
	case "health", "status":
		return CmdHealth, args
	case "embed":
		return CmdEmbed, args
	case "config":
		return CmdConfig, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags and returns the other arguments
// in order.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	// value consumes the next argument for flags that take one.
	value := func(i *int) string {
		if *i+1 < len(argv) {
			*i++
			return argv[*i]
		}
		return ""
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		if arg == "--" {
			remaining = append(remaining, argv[i:]...)
			break
		}

		switch arg {
		case "--json":
			args.JSON = true
		case "-v", "--verbose":
			args.Verbose = true
		case "-q", "--quiet":
			args.Quiet = true
		case "--config":
			args.ConfigPath = value(&i)
		case "--url":
			args.URL = value(&i)
		case "-m", "--model":
			args.Model = value(&i)
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				args.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--url="):
				args.URL = strings.TrimPrefix(arg, "--url=")
			case strings.HasPrefix(arg, "--model="):
				args.Model = strings.TrimPrefix(arg, "--model=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, args
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd and returns the process exit code.
func Run(cmd Command, args Args) int {
	return runWith(cmd, args, Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr})
}

// Streams are the standard streams a command reads and writes.
type Streams struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func runWith(cmd Command, args Args, s Streams) int {
	var err error
	switch cmd {
	case CmdHelp:
		PrintUsage(s.Stdout)
		return ExitSuccess
	case CmdVersion:
		err = HandleVersion(args, s)
	case CmdConfig:
		err = HandleConfig(args, s)
	case CmdUnknown:
		err = &UsageError{Reason: fmt.Sprintf("unknown command %q", args.Name), Example: "rigrun-ollama help"}
	default:
		err = runWithApp(cmd, args, s)
	}

	if err != nil {
		// In JSON mode the command has already printed its own envelope
		// unless it failed before producing one.
		var printed *printedError
		if !errors.As(err, &printed) {
			out := s.Stderr
			if args.JSON {
				out = s.Stdout
			}
			DisplayError(out, cmd.String(), err, args.JSON)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}

func runWithApp(cmd Command, args Args, s Streams) error {
	app, err := NewApp(args, s)
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case CmdPull:
		return HandlePull(app)
	case CmdGenerate:
		return HandleGenerate(app)
	case CmdChat:
		return HandleChat(app)
	case CmdModels:
		return HandleModels(app)
	case CmdShow:
		return HandleShow(app)
	case CmdDelete:
		return HandleDelete(app)
	case CmdHealth:
		return HandleHealth(app)
	case CmdEmbed:
		return HandleEmbed(app)
	}
	return &UsageError{Reason: fmt.Sprintf("unknown command %q", args.Name)}
}

// HandleVersion prints version information.
func HandleVersion(args Args, s Streams) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Fprint(s.Stdout)
	}
	PrintVersion(s.Stdout)
	return nil
}
