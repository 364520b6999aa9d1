package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kingmaker16/codex-os/internal/errors"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		graphPath string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a graph file without executing it",
		Long: `Validate a graph file: unique ids, known dependencies and a route for every
task type. The planned rounds are printed on success. With --strict a
dependency cycle is also an error; otherwise tasks on a cycle are reported
as never runnable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.Load(graphPath)
			if err != nil {
				return err
			}
			if strict {
				if err := g.ValidateStrict(); err != nil {
					return err
				}
			}

			planner, err := a.planner()
			if err != nil {
				return err
			}
			var unrouted []string
			for _, t := range g.Tasks {
				if _, err := planner.PlanRoute(t); err != nil {
					unrouted = append(unrouted, fmt.Sprintf("%s (%s)", t.ID, t.Type))
				}
			}
			if len(unrouted) > 0 {
				return errors.New(errors.ErrCodeRouteUnknownType,
					fmt.Sprintf("no route for %s", strings.Join(unrouted, ", "))).
					WithSuggestion("Run `orchestrator routes` to list the known task types")
			}

			out := cmd.OutOrStdout()
			levels, blocked := g.Levels()
			fmt.Fprintf(out, "%s %s: %d tasks, %d rounds\n",
				okStyle.Render("valid"), idStyle.Render(g.ID), len(g.Tasks), len(levels))
			for i, ids := range levels {
				fmt.Fprintf(out, "  %s %s\n", labelStyle.Render(fmt.Sprintf("round %d", i+1)), strings.Join(ids, ", "))
			}
			if len(blocked) > 0 {
				fmt.Fprintf(out, "  %s %s\n", warnStyle.Render("never runnable"), strings.Join(blocked, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&graphPath, "graph", "g", "", "graph file (.json, .yaml)")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject dependency cycles")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}
