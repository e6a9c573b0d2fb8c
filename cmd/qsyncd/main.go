// Command qsyncd serves project graph queries for a Bazel workspace over
// HTTP. It loads the last query output, or runs bazel query when there is
// none, and reloads whenever the output file changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/querysync/qsync/internal/api"
	"github.com/querysync/qsync/internal/querysource"
	"github.com/querysync/qsync/internal/reload"
	"github.com/querysync/qsync/pkg/config"
	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/ingest"
)

type daemonConfig struct {
	Workspace  string
	Port       string
	APIToken   string
	CORSOrigin string
	Input      string
}

func loadDaemonConfig() daemonConfig {
	cwd, _ := os.Getwd()
	return daemonConfig{
		Workspace:  envOrDefault("QSYNC_WORKSPACE", cwd),
		Port:       os.Getenv("PORT"),
		APIToken:   os.Getenv("QSYNC_API_TOKEN"),
		CORSOrigin: os.Getenv("QSYNC_CORS_ORIGIN"),
		Input:      os.Getenv("QSYNC_INPUT"),
	}
}

func main() {
	dcfg := loadDaemonConfig()

	root, err := config.FindWorkspaceRoot(dcfg.Workspace)
	if err != nil {
		log.Fatalf("resolve workspace: %v", err)
	}
	cfg := config.DefaultConfig()
	if path := config.FindConfigFile(root); path != "" {
		if cfg, err = config.Load(path); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	if dcfg.Port == "" {
		dcfg.Port = strconv.Itoa(cfg.Server.Port)
	}
	if dcfg.Input != "" {
		cfg.Query.Input = dcfg.Input
	}

	langs, err := cfg.Project.LanguageSet()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	project, err := ingest.NewProject(cfg.Project.Directories, cfg.Project.Excludes, langs)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := &graphSource{root: root, cfg: cfg, project: project}
	if err := src.ensureOutput(ctx); err != nil {
		log.Fatalf("initial query: %v", err)
	}

	cache := api.NewGraphCacheFromEnv(cfg.Server.GraphCacheSize)
	watcher := reload.NewWatcher(src.watchPath(), time.Duration(cfg.Server.ReloadDebounce)*time.Millisecond,
		src.load, cache.Publish)
	if err := watcher.Reload(ctx); err != nil {
		log.Fatalf("load graph: %v", err)
	}
	if src.watchPath() != "" {
		if err := watcher.Start(ctx); err != nil {
			log.Printf("not watching query output: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	mux := http.NewServeMux()
	api.NewHandler(cache).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:    ":" + dcfg.Port,
		Handler: api.CORS(dcfg.CORSOrigin)(api.TokenAuth(dcfg.APIToken)(mux)),
	}

	go func() {
		log.Printf("starting qsyncd for %s on :%s", root, dcfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// graphSource knows where the daemon's query output lives and how to turn it
// into a graph.
type graphSource struct {
	root    string
	cfg     *config.Config
	project *ingest.Project
}

// uris returns the configured input, or the cached output of the workspace.
// Each URI names the first chunk of a query output.
func (s *graphSource) uris() ([]string, error) {
	if s.cfg.Query.Input != "" {
		return []string{s.cfg.Query.Input}, nil
	}
	dir := config.QueryOutputDir(s.root)
	cached, err := querysource.CachedChunks(dir)
	if err != nil || len(cached) == 0 {
		return nil, err
	}
	return []string{filepath.Join(dir, querysource.OutputName)}, nil
}

// watchPath is the local file whose changes trigger a reload, or "" when the
// input is remote.
func (s *graphSource) watchPath() string {
	if s.cfg.Query.Input == "" {
		return filepath.Join(config.QueryOutputDir(s.root), querysource.OutputName)
	}
	loc, err := querysource.ParseURI(s.cfg.Query.Input)
	if err != nil || loc.Scheme != "file" {
		return ""
	}
	return loc.Key
}

// ensureOutput runs bazel query when the workspace has no cached output yet.
func (s *graphSource) ensureOutput(ctx context.Context) error {
	uris, err := s.uris()
	if err != nil {
		return err
	}
	if len(uris) > 0 {
		return nil
	}

	log.Printf("no query output for %s, running bazel query", s.root)
	q := &ingest.Querier{
		WorkspacePath: s.root,
		BazelPath:     s.cfg.Query.BazelPath,
		BazelRC:       s.cfg.Query.BazelRC,
		Timeout:       s.cfg.Query.QueryTimeout(),
	}
	outputs, err := q.Query(ctx, s.project)
	if err != nil {
		return err
	}
	return querysource.SaveChunks(config.QueryOutputDir(s.root), outputs)
}

func (s *graphSource) load(ctx context.Context) (*graph.BuildGraph, error) {
	uris, err := s.uris()
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return nil, fmt.Errorf("no query output for %s", s.root)
	}

	s3cfg := querysource.S3Config{Region: s.cfg.Storage.S3Region, Endpoint: s.cfg.Storage.S3Endpoint}
	var outputs [][]byte
	for _, uri := range uris {
		chunks, err := querysource.FetchChunks(ctx, uri, s3cfg)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, chunks...)
	}
	return ingest.LoadGraph(ctx, s.project, outputs...)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
