package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/querysync/qsync/internal/querysource"
	"github.com/querysync/qsync/pkg/config"
	"github.com/querysync/qsync/pkg/ingest"
)

func newQueryCmd() *cobra.Command {
	var (
		flags  graphFlags
		upload string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the project and cache the output",
		Long: `Runs bazel query over the project directories and saves the XML output to
the workspace cache, where the other commands and qsyncd pick it up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), &flags, upload)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&upload, "upload", "", "Also publish the output to this path, s3:// or gs:// URI")

	return cmd
}

func runQuery(ctx context.Context, f *graphFlags, upload string) error {
	ws, err := openWorkspace(f, true)
	if err != nil {
		return err
	}
	p, err := ws.project()
	if err != nil {
		return err
	}

	q := ws.querier(f)
	fmt.Fprintf(os.Stderr, "Querying %d project patterns in %s...\n", len(p.QueryPatterns()), ws.root)

	g, outputs, err := ingest.Sync(ctx, q, p)
	if err != nil {
		return err
	}

	dir := config.QueryOutputDir(ws.root)
	if err := querysource.SaveChunks(dir, outputs); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Query output saved to %s (%d chunks)\n", dir, len(outputs))

	if upload != "" {
		if err := querysource.PublishChunks(ctx, upload, outputs, s3Config(ws.cfg)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Uploaded %s (%d chunks)\n", upload, len(outputs))
	}

	s := g.Stats()
	fmt.Fprintf(os.Stderr, "  Targets:      %d\n", s.TargetCount)
	fmt.Fprintf(os.Stderr, "  Source files: %d\n", s.SourceFileCount)
	fmt.Fprintf(os.Stderr, "  Packages:     %d\n", s.PackageCount)
	fmt.Fprintf(os.Stderr, "  Project deps: %d\n", s.ProjectDepCount)
	fmt.Fprintf(os.Stderr, "  Duration:     %dms\n", s.BuildMs)

	return nil
}
