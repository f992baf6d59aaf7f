package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cachegrab/cachegrab/internal/autosearch"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the acquisition pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(runCtx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			effectiveDryRun := cfg.DryRun
			if cmd.Flags().Changed("dry-run") {
				effectiveDryRun = dryRun
			}

			summary, runErr := a.runner.RunWith(runCtx, autosearch.TriggerManual, effectiveDryRun)
			if summary != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderSummary(summary))
				if verbose || summary.DryRun {
					if table := renderTitles(summary.Titles); table != "" {
						fmt.Fprintln(out, table)
					}
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide without committing anything (overrides config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the per-title outcome table")
	return cmd
}
