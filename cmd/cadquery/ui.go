// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/AleutianCAD/services/resolve"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

// =============================================================================
// Styles
// =============================================================================

var (
	colorTeal    = lipgloss.Color("#2CD7C7")
	colorDeep    = lipgloss.Color("#16858E")
	colorSlate   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	Spinner lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
	Muted:   lipgloss.NewStyle().Foreground(colorSlate),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorDeep).
		Padding(0, 1),
	Spinner: lipgloss.NewStyle().Foreground(colorTeal),
}

// maxRowsShown caps the rows printed for the primary result.
const maxRowsShown = 10

func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func stdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// =============================================================================
// Result rendering
// =============================================================================

// renderResult formats a resolution for a terminal.
//
// Description:
//
//	Shows the explanation in a box, then the primary rows, then one line per
//	alternative with its status. Styling is applied only when styled is true
//	so the same layout can be asserted in tests.
func renderResult(res *resolution.Result, styled bool) string {
	st := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder

	explanation := res.Explanation
	if styled {
		explanation = styles.Box.Render(explanation)
	}
	b.WriteString(explanation)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s\n", st(styles.Muted, "intent:"), res.Interpretation.DetectedIntent)
	if len(res.Interpretation.SemanticTerms) > 0 {
		fmt.Fprintf(&b, "%s %s\n", st(styles.Muted, "terms:"), strings.Join(res.Interpretation.SemanticTerms, ", "))
	}

	if p := res.PrimaryResult; p != nil {
		fmt.Fprintf(&b, "\n%s %s (%d rows)\n", st(styles.Title, "Primary:"), p.Strategy, len(p.Results))
		for i, row := range p.Results {
			if i == maxRowsShown {
				fmt.Fprintf(&b, "  %s\n", st(styles.Muted, fmt.Sprintf("... %d more", len(p.Results)-maxRowsShown)))
				break
			}
			fmt.Fprintf(&b, "  %s\n", formatRow(row))
		}
	}

	if len(res.AlternativeResults) > 0 {
		fmt.Fprintf(&b, "\n%s\n", st(styles.Title, "Also tried:"))
		for _, alt := range res.AlternativeResults {
			line := fmt.Sprintf("  %s  %s", alt.Strategy, alt.Status)
			switch alt.Status {
			case resolution.StatusExecuted:
				line += fmt.Sprintf(" (%d rows)", len(alt.Results))
			case resolution.StatusFailed, resolution.StatusTimedOut, resolution.StatusInvalid:
				if alt.Error != "" {
					line += ": " + alt.Error
				}
				line = st(styles.Error, line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if res.Degraded {
		fmt.Fprintf(&b, "\n%s\n", st(styles.Warning, "degraded: external translation was not used"))
	}
	return b.String()
}

// formatRow renders a row as key=value pairs in key order.
func formatRow(row resolution.Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, row[k])
	}
	return strings.Join(parts, "  ")
}

// renderSuggestions formats suggested questions for a terminal.
func renderSuggestions(s resolve.SuggestionsResponse, styled bool) string {
	st := func(style lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return style.Render(text)
	}

	var b strings.Builder
	if len(s.DataSummary) > 0 {
		b.WriteString(st(styles.Title, "In the graph:"))
		b.WriteString("\n")
		for _, lc := range s.DataSummary {
			fmt.Fprintf(&b, "  %-20s %d\n", lc.Label, lc.Count)
		}
		b.WriteString("\n")
	}
	for _, cat := range s.SuggestedQuestions {
		b.WriteString(st(styles.Title, cat.Category))
		b.WriteString("\n")
		for _, q := range cat.Questions {
			fmt.Fprintf(&b, "  • %s\n", q)
		}
		b.WriteString("\n")
	}
	for _, tip := range s.Tips {
		fmt.Fprintf(&b, "%s\n", st(styles.Muted, "tip: "+tip))
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "%s\n", st(styles.Warning, s.Error))
	}
	return b.String()
}

// =============================================================================
// Interactive pieces
// =============================================================================

// promptQuestion asks for a question on the terminal.
func promptQuestion() (string, error) {
	var question string
	err := huh.NewInput().
		Title("What do you want to know about the drawings?").
		Placeholder("Qual a escala do projeto?").
		Value(&question).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("question must not be empty")
			}
			return nil
		}).
		Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(question), nil
}

// resolvedMsg tells the wait model that the work finished.
type resolvedMsg struct{}

// waitModel shows a spinner until resolvedMsg arrives or the user quits.
type waitModel struct {
	spinner   spinner.Model
	label     string
	done      bool
	cancelled bool
}

func newWaitModel(label string) waitModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner
	return waitModel{spinner: sp, label: label}
}

func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resolvedMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m waitModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.spinner.View() + " " + styles.Muted.Render(m.label) + "\n"
}

// errCancelled is returned when the user quits while waiting.
var errCancelled = errors.New("cancelled")

// runWithSpinner runs work while a spinner is drawn on stderr.
//
// Description:
//
//	work runs on its own goroutine and receives a cancel function's context
//	through the closure. When the user quits, cancel is called and the
//	function still waits for work to return.
func runWithSpinner(label string, cancel func(), work func()) error {
	p := tea.NewProgram(newWaitModel(label), tea.WithOutput(os.Stderr))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		work()
		p.Send(resolvedMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-finished
		return fmt.Errorf("spinner: %w", err)
	}
	if m, ok := final.(waitModel); ok && m.cancelled {
		cancel()
		<-finished
		return errCancelled
	}
	<-finished
	return nil
}
