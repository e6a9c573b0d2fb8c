package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/querysync/qsync/pkg/diag"
	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/graphquery"
	"github.com/querysync/qsync/pkg/label"
	"github.com/querysync/qsync/pkg/rulekind"
)

// graphCommand builds a command that loads the graph and hands it to run.
func graphCommand(use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error) (*cobra.Command, *graphFlags) {
	f := &graphFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGraph(cmd.Context(), f)
			if err != nil {
				return err
			}
			return run(cmd, f, g, args)
		},
	}
	f.register(cmd)
	return cmd, f
}

func parseLabelArgs(args []string) (label.Set, error) {
	out := make(label.Set, len(args))
	for _, a := range args {
		l, err := label.Parse(a)
		if err != nil {
			return nil, err
		}
		out.Add(l)
	}
	return out, nil
}

func newTargetsCmd() *cobra.Command {
	cmd, _ := graphCommand("targets <path>", "Show the targets to build for a file or directory", cobra.ExactArgs(1),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			ctx := diag.NewWriterContext(os.Stderr)
			result := g.ProjectTargets(ctx, args[0])
			return emit(cmd.OutOrStdout(), f.output, result, func(w io.Writer) {
				printLines(w, label.Strings(result.Targets.Sorted()))
			})
		})
	return cmd
}

func newOwnersCmd() *cobra.Command {
	cmd, _ := graphCommand("owners <path>", "Show the targets that list a file as a source", cobra.ExactArgs(1),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			owners, known := g.TargetOwners(args[0])
			if !known {
				fmt.Fprintf(os.Stderr, "%s is not a known source file\n", args[0])
			}
			if owners == nil {
				owners = label.Set{}
			}
			v := map[string]any{"path": args[0], "known": known, "owners": owners}
			return emit(cmd.OutOrStdout(), f.output, v, func(w io.Writer) {
				printLines(w, label.Strings(owners.Sorted()))
			})
		})
	return cmd
}

func newRdepsCmd() *cobra.Command {
	cmd, _ := graphCommand("rdeps <path>", "Show the targets that own or depend on a source file", cobra.ExactArgs(1),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			targets := g.ReverseDepsForSource(args[0])
			if targets == nil {
				targets = []*graph.ProjectTarget{}
			}
			return emit(cmd.OutOrStdout(), f.output, targets, func(w io.Writer) {
				for _, t := range targets {
					fmt.Fprintf(w, "%s\t%s\n", t.Label, t.Kind)
				}
			})
		})
	return cmd
}

func newDepsCmd() *cobra.Command {
	cmd, _ := graphCommand("deps <label>", "Show the external dependencies a target reaches", cobra.ExactArgs(1),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			target, err := label.Parse(args[0])
			if err != nil {
				return err
			}
			deps := g.TransitiveExternalDependencies(target)
			return emit(cmd.OutOrStdout(), f.output, deps, func(w io.Writer) {
				printLines(w, label.Strings(deps.Sorted()))
			})
		})
	return cmd
}

func newBuildDepsCmd() *cobra.Command {
	cmd, _ := graphCommand("build-deps <label>", "Show the dependencies to build for a target", cobra.ExactArgs(1),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			target, err := label.Parse(args[0])
			if err != nil {
				return err
			}
			behaviors := g.DependencyTrackingBehaviors(target)
			if behaviors == nil {
				behaviors = []graph.DependencyTrackingBehavior{}
			}
			build := g.ExternalDepsToBuildFor(target)
			v := map[string]any{"target": target, "behaviors": behaviors, "build": build}
			return emit(cmd.OutOrStdout(), f.output, v, func(w io.Writer) {
				for _, b := range behaviors {
					fmt.Fprintf(w, "# %s\n", b)
				}
				printLines(w, label.Strings(build.Sorted()))
			})
		})
	return cmd
}

func newRequestedCmd() *cobra.Command {
	cmd, _ := graphCommand("requested <label>...", "Show what to build and expect for a set of targets", cobra.MinimumNArgs(1),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			targets, err := parseLabelArgs(args)
			if err != nil {
				return err
			}
			req := g.ComputeRequestedTargets(targets)
			return emit(cmd.OutOrStdout(), f.output, req, func(w io.Writer) {
				fmt.Fprintln(w, "Build:")
				for _, l := range req.BuildTargets.Sorted() {
					fmt.Fprintf(w, "  %s\n", l)
				}
				fmt.Fprintln(w, "Expected dependencies:")
				for _, l := range req.ExpectedDependencyTargets.Sorted() {
					fmt.Fprintf(w, "  %s\n", l)
				}
			})
		})
	return cmd
}

func newSourcesCmd() *cobra.Command {
	var (
		kind  string
		types []string
	)
	cmd, _ := graphCommand("sources", "List project source files by rule kind", cobra.NoArgs,
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			pred := func(string) bool { return true }
			if kind != "" {
				c, err := rulekind.ParseCategory(kind)
				if err != nil {
					return err
				}
				pred = rulekind.Predicate(c)
			}
			var sts []graph.SourceType
			for _, name := range types {
				st, err := graph.ParseSourceType(name)
				if err != nil {
					return err
				}
				sts = append(sts, st)
			}
			if len(sts) == 0 {
				sts = []graph.SourceType{graph.SourceRegular}
			}

			files := g.SourceFilesByRuleKind(pred, sts...)
			if files == nil {
				files = []string{}
			}
			return emit(cmd.OutOrStdout(), f.output, files, func(w io.Writer) {
				printLines(w, files)
			})
		})
	cmd.Flags().StringVar(&kind, "kind", "", "Rule kind category: java, kotlin, android, cc or proto (default: all)")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Source types: regular or android_resources (default: regular)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd, _ := graphCommand("stats", "Show graph statistics", cobra.NoArgs,
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			s := g.Stats()
			return emit(cmd.OutOrStdout(), f.output, s, func(w io.Writer) {
				fmt.Fprintf(w, "Targets:      %d\n", s.TargetCount)
				fmt.Fprintf(w, "Source files: %d\n", s.SourceFileCount)
				fmt.Fprintf(w, "Packages:     %d\n", s.PackageCount)
				fmt.Fprintf(w, "Project deps: %d\n", s.ProjectDepCount)
				fmt.Fprintf(w, "Edges:        %d\n", s.EdgeCount)
				fmt.Fprintf(w, "Build time:   %dms\n", s.BuildMs)
			})
		})
	return cmd
}

func newEgoCmd() *cobra.Command {
	var (
		depth     int
		direction string
		maxNodes  int
	)
	cmd, _ := graphCommand("ego <label|package|pattern>", "Show the dependency neighborhood of targets", cobra.ExactArgs(1),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			dir, err := graphquery.ParseDirection(direction)
			if err != nil {
				return err
			}
			roots, err := graphquery.Resolve(g, args[0])
			if err != nil {
				return err
			}
			result := graphquery.EgoGraph(g, roots, depth, dir, maxNodes)
			return emit(cmd.OutOrStdout(), f.output, result, func(w io.Writer) {
				for _, e := range result.Edges {
					arrow := "->"
					if e.Runtime {
						arrow = "=>"
					}
					fmt.Fprintf(w, "%s %s %s\n", e.From, arrow, e.To)
				}
				if result.Truncated {
					fmt.Fprintf(os.Stderr, "Result truncated at %d nodes\n", len(result.Targets)+result.External.Len())
				}
			})
		})
	cmd.Flags().IntVar(&depth, "depth", 2, "Number of hops to follow")
	cmd.Flags().StringVar(&direction, "direction", "both", "Edges to follow: deps, rdeps or both")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 0, "Stop expanding after this many nodes (default 500)")
	return cmd
}

func newPathCmd() *cobra.Command {
	var maxPaths int
	cmd, _ := graphCommand("path <from> <to>", "Show the shortest dependency paths between targets", cobra.ExactArgs(2),
		func(cmd *cobra.Command, f *graphFlags, g *graph.BuildGraph, args []string) error {
			result, err := graphquery.FindPaths(g, args[0], args[1], maxPaths)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), f.output, result, func(w io.Writer) {
				if len(result.Paths) == 0 {
					fmt.Fprintf(os.Stderr, "No path from %s to %s\n", args[0], args[1])
				}
				for _, p := range result.Paths {
					fmt.Fprintln(w, strings.Join(label.Strings(p), " -> "))
				}
			})
		})
	cmd.Flags().IntVar(&maxPaths, "max-paths", 10, "Maximum number of paths to show")
	return cmd
}
