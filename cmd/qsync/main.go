// Package main provides the qsync CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qsync",
		Short: "Project build graph queries for Bazel workspaces",
		Long: `qsync runs bazel query over the project directories of a workspace, builds
an in-memory graph of the project targets and answers the questions an IDE
asks: which targets own a file, what depends on it, and what to build.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newQueryCmd(),
		newTargetsCmd(),
		newOwnersCmd(),
		newRdepsCmd(),
		newDepsCmd(),
		newBuildDepsCmd(),
		newRequestedCmd(),
		newSourcesCmd(),
		newStatsCmd(),
		newEgoCmd(),
		newPathCmd(),
	)
	return rootCmd
}
