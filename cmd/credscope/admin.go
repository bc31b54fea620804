package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// opening the store applies pending migrations
			a, err := openStore(g)
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			return nil
		},
	}
}

func newImportCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "import <fixtures.yaml|->",
		Short: "Load profiles, accounts, reviews and stakes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			a, err := openStore(g)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.store.Import(cmd.Context(), r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d profiles, %d accounts, %d reviews, %d stakes\n",
				stats.Profiles, stats.Accounts, stats.Reviews, stats.Stakes)
			return nil
		},
	}
}
