package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/querysync/qsync/internal/querysource"
	"github.com/querysync/qsync/pkg/config"
	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/ingest"
)

// graphFlags are shared by every command that needs a graph.
type graphFlags struct {
	repoPath  string
	inputs    []string
	bazelPath string
	bazelRC   string
	output    string
}

func (f *graphFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.repoPath, "repo-path", "", "Path to repository root (default: detect workspace)")
	cmd.Flags().StringSliceVar(&f.inputs, "input", nil, "Query output to load: path, s3:// or gs:// URI (default: cached query output)")
	cmd.Flags().StringVar(&f.bazelPath, "bazel-path", "", "Path to bazel/bazelisk binary")
	cmd.Flags().StringVar(&f.bazelRC, "bazelrc", "", "Path to .bazelrc file")
	cmd.Flags().StringVar(&f.output, "output", "text", "Output format: text or json")
}

// workspace is a resolved workspace root and its configuration.
type workspace struct {
	root string // empty when only --input was given outside a workspace
	cfg  *config.Config
}

func openWorkspace(f *graphFlags, requireRoot bool) (*workspace, error) {
	root, err := resolveWorkspace(f.repoPath)
	if err != nil {
		if requireRoot || len(f.inputs) == 0 {
			return nil, err
		}
		return &workspace{cfg: config.DefaultConfig()}, nil
	}
	return &workspace{root: root, cfg: loadConfig(root)}, nil
}

func (ws *workspace) project() (*ingest.Project, error) {
	langs, err := ws.cfg.Project.LanguageSet()
	if err != nil {
		return nil, err
	}
	return ingest.NewProject(ws.cfg.Project.Directories, ws.cfg.Project.Excludes, langs)
}

func (ws *workspace) querier(f *graphFlags) *ingest.Querier {
	return &ingest.Querier{
		WorkspacePath: ws.root,
		BazelPath:     firstNonEmpty(f.bazelPath, ws.cfg.Query.BazelPath, "bazelisk"),
		BazelRC:       firstNonEmpty(f.bazelRC, ws.cfg.Query.BazelRC),
		Timeout:       ws.cfg.Query.QueryTimeout(),
	}
}

func s3Config(cfg *config.Config) querysource.S3Config {
	return querysource.S3Config{
		Region:   cfg.Storage.S3Region,
		Endpoint: cfg.Storage.S3Endpoint,
	}
}

// inputURIs returns the query outputs to load: explicit inputs first, then
// the configured input, then the cached output of the last `qsync query`.
// Each URI names the first chunk of a query output.
func (ws *workspace) inputURIs(f *graphFlags) ([]string, error) {
	if len(f.inputs) > 0 {
		return f.inputs, nil
	}
	if ws.cfg.Query.Input != "" {
		return []string{ws.cfg.Query.Input}, nil
	}
	if ws.root == "" {
		return nil, fmt.Errorf("no query output given")
	}
	dir := config.QueryOutputDir(ws.root)
	cached, err := querysource.CachedChunks(dir)
	if err != nil {
		return nil, err
	}
	if len(cached) == 0 {
		return nil, fmt.Errorf("no query output found for %s; run 'qsync query' first", ws.root)
	}
	return []string{filepath.Join(dir, querysource.OutputName)}, nil
}

// loadGraph fetches the query outputs selected by f and builds the graph.
func loadGraph(ctx context.Context, f *graphFlags) (*graph.BuildGraph, error) {
	ws, err := openWorkspace(f, false)
	if err != nil {
		return nil, err
	}
	p, err := ws.project()
	if err != nil {
		return nil, err
	}
	uris, err := ws.inputURIs(f)
	if err != nil {
		return nil, err
	}

	var outputs [][]byte
	for _, uri := range uris {
		chunks, err := querysource.FetchChunks(ctx, uri, s3Config(ws.cfg))
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, chunks...)
	}

	g, err := ingest.LoadGraph(ctx, p, outputs...)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	return g, nil
}

func resolveWorkspace(repoPath string) (string, error) {
	if repoPath != "" {
		abs, err := filepath.Abs(repoPath)
		if err != nil {
			return "", fmt.Errorf("resolving repo path: %w", err)
		}
		return config.FindWorkspaceRoot(abs)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	return config.FindWorkspaceRoot(cwd)
}

func loadConfig(wsRoot string) *config.Config {
	cfgFile := config.FindConfigFile(wsRoot)
	if cfgFile == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

// emit writes v as indented JSON when format is "json", otherwise calls text.
func emit(w io.Writer, format string, v any, text func(io.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "text", "":
		text(w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

func printLines(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
