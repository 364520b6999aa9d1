// Package cmd implements the orchestrator command line.
package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/Kingmaker16/codex-os/internal/config"
	"github.com/Kingmaker16/codex-os/internal/log"
	"github.com/Kingmaker16/codex-os/internal/version"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *log.Logger
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Execute task graphs across the codex services",
		Long: `orchestrator runs task graphs: sets of typed tasks joined by dependsOn
edges. Each round it dispatches every task whose dependencies are done to the
service that implements its type, records results, and repeats until the
graph is complete or no further progress is possible.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./orchestrator.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format: json or text")

	root.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newValidateCmd(a),
		newRoutesCmd(a),
		newVersionCmd(),
	)
	return root
}

// init loads configuration and builds the logger. Flags win over the file
// and the environment.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	a.cfg = cfg
	a.stderr = cmd.ErrOrStderr()

	logCfg := log.ConfigFrom(cfg.Log.Level, cfg.Log.Format, version.Version)
	logCfg.Output = a.stderr
	a.logger = log.New(logCfg)
	log.SetDefault(a.logger)
	return nil
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command; cancelling ctx stops executions and
// shuts the server down.
func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
