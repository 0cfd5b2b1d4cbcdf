// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// pull_view.go - Bubble Tea progress display for parallel pulls.

package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/rigrun-ollama/internal/ollama"
	"github.com/jeranaias/rigrun-ollama/internal/util"
)

// =============================================================================
// MESSAGES
// =============================================================================

// pullProgressMsg carries one progress event from a pull's goroutine.
type pullProgressMsg struct {
	progress ollama.Progress
}

// pullDoneMsg reports that one pull reached its terminal state.
type pullDoneMsg struct {
	name   string
	result ollama.Result
	err    error
}

// =============================================================================
// MODEL
// =============================================================================

type pullRow struct {
	name     string
	status   string
	progress ollama.Progress
	done     bool
	result   ollama.Result
	err      error
}

// pullView renders one line per model. It quits once every pull is done;
// Ctrl-C cancels all pulls and waits for them to report.
type pullView struct {
	rows  []*pullRow
	index map[string]int

	bar       progress.Model
	nameWidth int
	title     cases.Caser

	cancelAll  func()
	cancelling bool
	remaining  int
}

func newPullView(names []string, cancelAll func()) *pullView {
	v := &pullView{
		index:     make(map[string]int, len(names)),
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
		title:     cases.Title(language.English),
		cancelAll: cancelAll,
		remaining: len(names),
	}
	for i, name := range names {
		v.rows = append(v.rows, &pullRow{name: name, status: "waiting"})
		v.index[name] = i
		if w := util.StringWidth(name); w > v.nameWidth {
			v.nameWidth = w
		}
	}
	if v.nameWidth > 32 {
		v.nameWidth = 32
	}
	return v
}

func (v *pullView) Init() tea.Cmd { return nil }

func (v *pullView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !v.cancelling {
				v.cancelling = true
				v.cancelAll()
			}
		}
		return v, nil

	case tea.WindowSizeMsg:
		w := msg.Width - v.nameWidth - 40
		if w > 50 {
			w = 50
		}
		if w < 10 {
			w = 10
		}
		v.bar.Width = w
		return v, nil

	case pullProgressMsg:
		if row := v.row(msg.progress.Operation); row != nil && !row.done {
			row.progress = msg.progress
			row.status = msg.progress.Status
		}
		return v, nil

	case pullDoneMsg:
		if row := v.row(msg.name); row != nil && !row.done {
			row.done = true
			row.result = msg.result
			row.err = msg.err
			v.remaining--
		}
		if v.remaining <= 0 {
			return v, tea.Quit
		}
		return v, nil
	}
	return v, nil
}

func (v *pullView) row(name string) *pullRow {
	i, ok := v.index[name]
	if !ok {
		return nil
	}
	return v.rows[i]
}

func (v *pullView) View() string {
	var b strings.Builder
	for _, row := range v.rows {
		name := util.PadWidth(util.TruncateWidth(row.name, v.nameWidth), v.nameWidth)
		b.WriteString(HighlightStyle.Render(name))
		b.WriteString("  ")

		switch {
		case row.done:
			b.WriteString(v.bar.ViewAs(donePercent(row)))
			b.WriteString("  ")
			b.WriteString(outcomeLine(row.result, row.err))
		default:
			b.WriteString(v.bar.ViewAs(row.progress.Percent() / 100))
			b.WriteString("  ")
			b.WriteString(v.title.String(row.status))
			if row.progress.Total > 0 {
				b.WriteString(DimStyle.Render("  " + row.progress.FormattedProgress()))
			}
		}
		b.WriteString("\n")
	}

	if v.cancelling {
		b.WriteString(WarningStyle.Render("Cancelling...") + "\n")
	} else {
		b.WriteString(DimStyle.Render("Press Ctrl+C to cancel") + "\n")
	}
	return b.String()
}

func donePercent(row *pullRow) float64 {
	if row.result.IsSuccess() {
		return 1
	}
	return row.progress.Percent() / 100
}

// outcomeLine renders a finished transfer's status for humans.
func outcomeLine(res ollama.Result, err error) string {
	switch {
	case err == nil && res.IsSuccess():
		return RenderStatus("ok") + " " + DimStyle.Render(res.FormattedDuration())
	case res.IsCancelled() || ollama.IsCancelled(err):
		return RenderStatus("cancelled")
	default:
		msg := res.ErrorMessage
		if msg == "" && err != nil {
			msg = err.Error()
		}
		return RenderStatus("fail") + " " + ErrorStyle.Render(msg)
	}
}

// plainPullPrinter writes progress for non-terminal output: one line per
// status change and one per ten percent of a layer download.
type plainPullPrinter struct {
	lastStatus map[string]string
	lastDecile map[string]int
}

func newPlainPullPrinter() *plainPullPrinter {
	return &plainPullPrinter{
		lastStatus: make(map[string]string),
		lastDecile: make(map[string]int),
	}
}

// line returns the line to print for p, or "" when nothing changed enough.
func (pp *plainPullPrinter) line(p ollama.Progress) string {
	name := p.Operation
	if p.Status != pp.lastStatus[name] {
		pp.lastStatus[name] = p.Status
		pp.lastDecile[name] = int(p.Percent()) / 10
		if p.Total > 0 {
			return fmt.Sprintf("%s: %s %s", name, p.Status, p.FormattedProgress())
		}
		return fmt.Sprintf("%s: %s", name, p.Status)
	}
	if p.Total <= 0 {
		return ""
	}
	decile := int(p.Percent()) / 10
	if decile <= pp.lastDecile[name] {
		return ""
	}
	pp.lastDecile[name] = decile
	return fmt.Sprintf("%s: %s %s", name, p.Status, p.FormattedProgress())
}
