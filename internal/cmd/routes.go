package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRoutesCmd(a *app) *cobra.Command {
	var (
		taskType string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table or plan one task type",
		Example: `  orchestrator routes
  orchestrator routes --type social_post`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			planner, err := a.planner()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var v any = planner.Entries()
			if taskType != "" {
				target, err := planner.Lookup(taskType)
				if err != nil {
					return err
				}
				if !asJSON {
					fmt.Fprintf(out, "%s -> %s %s\n", idStyle.Render(taskType), titleStyle.Render(target.Service), target)
					return nil
				}
				v = target
			}

			if asJSON {
				data, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprint(out, renderRoutes(planner.Entries()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskType, "type", "t", "", "task type to plan")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
