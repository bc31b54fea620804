package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/credscope/credscope/pkg/scoring"
	"github.com/credscope/credscope/pkg/surface"
)

func newExplainCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Show the calculation tree scores are computed with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			tree := cfg.Tree()
			if err := tree.Validate(); err != nil {
				return fmt.Errorf("invalid calculation tree: %w", err)
			}
			if g.output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tree)
			}
			return surface.RenderTree(cmd.OutOrStdout(), tree)
		},
	}
}

func newHistoryCmd(g *globalOpts) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <target>",
		Short: "List stored scores of a target, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := scoring.ParseTarget(args[0])
			if err != nil {
				return err
			}
			a, err := openStore(g)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.store.History(cmd.Context(), target, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if g.output == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintf(out, "No scores recorded for %s\n", target)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "COMPUTED\tSCORE\tSTATUS\tID")
			for i := range rows {
				row := &rows[i]
				status := "ok"
				if row.Partial {
					status = fmt.Sprintf("partial (%d failed)", len(row.Errors))
				}
				if a.store.IsStale(row) {
					status += ", stale"
				}
				fmt.Fprintf(tw, "%s\t%.0f\t%s\t%s\n", row.ComputedAt.Format(time.RFC3339), row.Score, status, row.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of scores to list")
	return cmd
}
