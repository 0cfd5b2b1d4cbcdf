// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation prompts for destructive commands.

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConfirmationOptions controls RequireConfirmation.
type ConfirmationOptions struct {
	// ConfirmFlag is true when --yes was passed.
	ConfirmFlag bool

	// JSONMode disables prompting; --yes is then mandatory.
	JSONMode bool

	// Interactive reports whether in is a terminal.
	Interactive bool
}

// RequireConfirmation asks "Are you sure you want to <action>?" on out and
// reads the answer from in.
//
// Confirmation flow:
//  1. --yes returns true immediately
//  2. JSON mode without --yes is an error
//  3. A non-interactive stdin without --yes is an error
//  4. Otherwise the user must answer y or yes
func RequireConfirmation(in io.Reader, out io.Writer, action string, opts ConfirmationOptions) (bool, error) {
	if opts.ConfirmFlag {
		return true, nil
	}
	if opts.JSONMode {
		return false, &UsageError{Reason: "confirmation required: use --yes in JSON mode"}
	}
	if !opts.Interactive {
		return false, &UsageError{Reason: "confirmation required but stdin is not a terminal; use --yes"}
	}

	fmt.Fprintf(out, "Are you sure you want to %s? [y/N]: ", action)

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}
