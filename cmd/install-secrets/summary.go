// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/fleet-secrets/cmd/install-secrets/cli"
	"github.com/bureau-foundation/fleet-secrets/lib/planner"
)

// summaryStyles colors the text summary. Output that is not a terminal
// gets the ASCII profile, so styles render as plain text.
type summaryStyles struct {
	label   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	faint   lipgloss.Style
}

func newSummaryStyles(w io.Writer) summaryStyles {
	renderer := lipgloss.NewRenderer(w)
	if !cli.IsTerminal(w) {
		renderer.SetColorProfile(termenv.Ascii)
	}
	return summaryStyles{
		label:   renderer.NewStyle().Bold(true),
		success: renderer.NewStyle().Foreground(lipgloss.Color("2")),
		warning: renderer.NewStyle().Foreground(lipgloss.Color("3")),
		failure: renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		faint:   renderer.NewStyle().Faint(true),
	}
}

// installSummary is the --json form of an install run.
type installSummary struct {
	Installed int             `json:"installed"`
	Unchanged int             `json:"unchanged"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Results   []resultSummary `json:"results"`
}

type resultSummary struct {
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Outcome     planner.Outcome `json:"outcome"`
	Unchanged   bool            `json:"unchanged,omitempty"`
	Expired     bool            `json:"expired,omitempty"`
	Kind        string          `json:"kind,omitempty"`
}

func newInstallSummary(report *planner.Report) installSummary {
	summary := installSummary{
		Installed: report.Installed,
		Unchanged: report.Unchanged,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
		Results:   make([]resultSummary, 0, len(report.Results)),
	}
	for _, result := range report.Results {
		summary.Results = append(summary.Results, resultSummary{
			ID:          result.ID,
			Destination: result.Destination,
			Outcome:     result.Outcome,
			Unchanged:   result.Unchanged,
			Expired:     result.Expired,
			Kind:        string(result.Kind),
		})
	}
	return summary
}

// writeInstallSummary prints one line of counts followed by one line
// per failed secret. Error messages are left to the log; the summary
// names only the ID and the error kind.
func writeInstallSummary(w io.Writer, report *planner.Report) error {
	styles := newSummaryStyles(w)

	var builder strings.Builder
	fmt.Fprintf(&builder, "%s %s, %s, %s\n",
		styles.label.Render("secrets:"),
		styles.success.Render(fmt.Sprintf("%d installed (%d unchanged)", report.Installed, report.Unchanged)),
		styles.faint.Render(fmt.Sprintf("%d skipped", report.Skipped)),
		failureCount(styles, report.Failed),
	)
	for _, result := range report.Results {
		switch {
		case result.Outcome == planner.Failed:
			fmt.Fprintf(&builder, "  %s %s %s\n",
				styles.failure.Render("failed"),
				result.ID,
				styles.faint.Render("("+string(result.Kind)+")"),
			)
		case result.Expired:
			fmt.Fprintf(&builder, "  %s %s\n", styles.warning.Render("expired"), result.ID)
		}
	}
	_, err := io.WriteString(w, builder.String())
	return err
}

func failureCount(styles summaryStyles, failed int) string {
	text := fmt.Sprintf("%d failed", failed)
	if failed == 0 {
		return styles.faint.Render(text)
	}
	return styles.failure.Render(text)
}

// planSummary is the --json form of a plan.
type planSummary struct {
	Secrets []decisionSummary `json:"secrets"`
}

type decisionSummary struct {
	ID          string          `json:"id"`
	Destination string          `json:"destination"`
	Outcome     planner.Outcome `json:"outcome"`
	Keys        []string        `json:"keys"`
	Expired     bool            `json:"expired,omitempty"`
}

func newPlanSummary(decisions []planner.Decision) planSummary {
	summary := planSummary{Secrets: make([]decisionSummary, 0, len(decisions))}
	for _, decision := range decisions {
		keys := decision.Keys
		if keys == nil {
			keys = []string{}
		}
		summary.Secrets = append(summary.Secrets, decisionSummary{
			ID:          decision.ID,
			Destination: decision.Destination,
			Outcome:     decision.Outcome,
			Keys:        keys,
			Expired:     decision.Expired,
		})
	}
	return summary
}

func writePlanSummary(w io.Writer, decisions []planner.Decision) error {
	styles := newSummaryStyles(w)

	var builder strings.Builder
	for _, decision := range decisions {
		if decision.Outcome == planner.Installed {
			fmt.Fprintf(&builder, "%s %s -> %s %s\n",
				styles.success.Render("install"),
				decision.ID,
				decision.Destination,
				styles.faint.Render("("+strings.Join(decision.Keys, ", ")+")"),
			)
		} else {
			fmt.Fprintf(&builder, "%s %s\n", styles.faint.Render("skip   "), decision.ID)
		}
		if decision.Expired {
			fmt.Fprintf(&builder, "  %s expires_at has passed\n", styles.warning.Render("expired:"))
		}
	}
	_, err := io.WriteString(w, builder.String())
	return err
}
