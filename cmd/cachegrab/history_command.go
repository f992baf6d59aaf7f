package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cachegrab/cachegrab/internal/database"
	"github.com/cachegrab/cachegrab/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "history [run-id]",
		Short:       "List recent runs, or show the actions of one run",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{skipValidate: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withHistory(cmd.Context(), cfg.Database.Path, func(svc *history.Service) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					run, err := svc.Get(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(out, run)
					}
					fmt.Fprintln(out, renderRun(run))
					return nil
				}

				page, err := svc.List(cmd.Context(), history.ListOptions{PageSize: limit})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, page.Items)
				}
				if len(page.Items) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRuns(page.Items))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// withHistory opens the database read path without taking the run lock.
func withHistory(ctx context.Context, path string, fn func(*history.Service) error) error {
	db, err := database.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(history.NewService(db.Conn(), zerolog.Nop()))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
