package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Kingmaker16/codex-os/internal/domain"
	"github.com/Kingmaker16/codex-os/internal/engine"
	"github.com/Kingmaker16/codex-os/internal/graph"
	"github.com/Kingmaker16/codex-os/internal/route"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	idStyle    = lipgloss.NewStyle().Bold(true)
)

func statusStyle(s domain.TaskStatus) lipgloss.Style {
	switch s {
	case domain.StatusDone:
		return okStyle
	case domain.StatusFailed:
		return failStyle
	default:
		return warnStyle
	}
}

func outcomeStyle(o engine.Outcome) lipgloss.Style {
	switch o {
	case engine.OutcomeCompleted:
		return okStyle
	case engine.OutcomeCancelled:
		return failStyle
	default:
		return warnStyle
	}
}

// renderReport is the human summary printed by `orchestrator run`.
func renderReport(g *graph.Graph, r *engine.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Graph"), idStyle.Render(g.ID))
	fmt.Fprintf(&b, "%s %s  %s %d  %s %s\n",
		labelStyle.Render("outcome"), outcomeStyle(r.Outcome).Render(string(r.Outcome)),
		labelStyle.Render("rounds"), r.Rounds,
		labelStyle.Render("duration"), r.Duration.Round(time.Millisecond).String(),
	)
	fmt.Fprintf(&b, "%s %d  %s %s  %s %s  %s %s\n\n",
		labelStyle.Render("tasks"), r.Counts.Total,
		labelStyle.Render("done"), okStyle.Render(fmt.Sprint(r.Counts.Done)),
		labelStyle.Render("failed"), failStyle.Render(fmt.Sprint(r.Counts.Failed)),
		labelStyle.Render("pending"), warnStyle.Render(fmt.Sprint(r.Counts.Pending)),
	)

	for _, t := range g.Tasks {
		line := fmt.Sprintf("  %-8s %s %s", statusStyle(t.Status).Render(t.Status.String()),
			idStyle.Render(t.ID), labelStyle.Render("("+t.Type+")"))
		if t.Error != "" {
			line += " " + failStyle.Render(t.Error)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// renderRoutes prints the route table grouped by service.
func renderRoutes(entries []route.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s\n    %s\n",
			titleStyle.Render(fmt.Sprintf("%-12s", e.Service)),
			labelStyle.Render(fmt.Sprintf("%-4s", e.Method)),
			e.URL,
			strings.Join(e.Types, ", "),
		)
	}
	return b.String()
}
