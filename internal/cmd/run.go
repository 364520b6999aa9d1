package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kingmaker16/codex-os/internal/engine"
	"github.com/Kingmaker16/codex-os/internal/exitcode"
	"github.com/Kingmaker16/codex-os/internal/graph"
)

type runOptions struct {
	graphPath string
	outPath   string
	asJSON    bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a graph file once and print the result",
		Long: `Load a graph from a JSON or YAML file, execute it against the configured
services and print a summary. With --out the final graph, including task
results and errors, is written back out.

Exit codes: 0 all tasks done, 4 tasks left pending (stuck or capped),
5 completed with failed tasks, 130 interrupted.`,
		Example: `  orchestrator run --graph pipeline.yaml
  orchestrator run --graph pipeline.json --out result.json --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.graphPath, "graph", "g", "", "graph file (.json, .yaml)")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write the executed graph to this file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the report and graph as JSON")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func (a *app) run(cmd *cobra.Command, opts *runOptions) error {
	g, err := graph.Load(opts.graphPath)
	if err != nil {
		return err
	}

	planner, err := a.planner()
	if err != nil {
		return err
	}

	notifier, err := a.hooks()
	if err != nil {
		return err
	}
	defer notifier.Wait()

	report, execErr := a.engine(planner, nil, notifier).Execute(cmd.Context(), g)
	if report == nil {
		return execErr
	}

	if opts.outPath != "" {
		if err := graph.Save(g, opts.outPath); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		data, err := json.MarshalIndent(struct {
			Report *engine.Report `json:"report"`
			Graph  *graph.Graph   `json:"graph"`
		}{report, g}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, renderReport(g, report))
	}

	if execErr != nil {
		return exitcode.WithCode(exitcode.Interrupted, execErr)
	}
	if code := exitcode.ForOutcome(string(report.Outcome), report.Counts.Failed); code != exitcode.Success {
		return exitcode.WithCode(code, fmt.Errorf("graph %s: %s", g.ID, exitcode.GetExitCodeDescription(code)))
	}
	return nil
}
