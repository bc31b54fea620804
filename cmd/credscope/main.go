// Package main provides the credscope CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

// globalOpts are the persistent flags shared by every command.
type globalOpts struct {
	configPath string
	dbURL      string
	logLevel   string
	output     string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}
	rootCmd := &cobra.Command{
		Use:   "credscope",
		Short: "Credibility scores for on-chain identities",
		Long: `credscope computes credibility scores for addresses, profiles and social
accounts from on-chain age, social age, reviews, stakes, backers and
invitations, and explains how each score was reached.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to config file (default: search for .credscope/config.yaml)")
	pf.StringVar(&g.dbURL, "db", "", "Database URL or sqlite path (default: from config)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVarP(&g.output, "output", "o", "text", "Output format: text, json or markdown")

	rootCmd.AddCommand(
		newScoreCmd(g),
		newSimulateCmd(g),
		newExplainCmd(g),
		newHistoryCmd(g),
		newMigrateCmd(g),
		newImportCmd(g),
		newServeCmd(g),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
