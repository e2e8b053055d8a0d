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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCAD/services/resolve"
	"github.com/AleutianAI/AleutianCAD/services/resolve/resolution"
)

var (
	askInteractive bool
	askLanguage    string
	askJSON        bool

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Resolve one question and print the answer",
		Long: `Resolves a question against the graph and prints the explanation,
the primary rows and the alternatives that were tried.

Output is styled on a terminal and JSON otherwise (or with --json).`,
		Example: `  cadquery ask "Qual o nome do projeto?"
  cadquery ask -i
  cadquery ask --json "How many floors are there?" | jq .primary_result`,
		RunE: runAsk,
	}

	suggestJSON bool

	suggestCmd = &cobra.Command{
		Use:   "suggest",
		Short: "Print example questions for the data in the graph",
		Args:  cobra.NoArgs,
		RunE:  runSuggest,
	}
)

func init() {
	askCmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "Prompt for the question")
	askCmd.Flags().StringVar(&askLanguage, "lang", "", "Language hint for the explanation (pt, en)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the raw JSON result")

	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "Print the raw JSON response")
}

// questionFromArgs joins positional args into one question.
func questionFromArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := questionFromArgs(args)
	if askInteractive {
		if !stdinIsTerminal() {
			return errors.New("--interactive needs a terminal")
		}
		q, err := promptQuestion()
		if err != nil {
			return err
		}
		question = q
	}
	if question == "" {
		return errors.New("a question is required (pass it as arguments or use -i)")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
	if err := a.withResolver(ctx); err != nil {
		return err
	}

	styled := !askJSON && stdoutIsTerminal()

	var (
		res        *resolution.Result
		resolveErr error
	)
	work := func() {
		res, resolveErr = a.resolver.Resolve(ctx, resolution.NewQuestion(question, askLanguage))
	}
	if styled {
		if err := runWithSpinner("resolving...", cancel, work); err != nil {
			return err
		}
	} else {
		work()
	}
	if resolveErr != nil {
		return resolveErr
	}

	out := cmd.OutOrStdout()
	if !styled {
		return writeJSON(out, res)
	}
	_, err = fmt.Fprint(out, renderResult(res, true))
	return err
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

	suggestions := resolve.SuggestQuestions(ctx, a.store)

	out := cmd.OutOrStdout()
	if suggestJSON || !stdoutIsTerminal() {
		return writeJSON(out, suggestions)
	}
	_, err = fmt.Fprint(out, renderSuggestions(suggestions, true))
	return err
}
