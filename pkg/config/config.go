// Package config handles loading and managing qsync configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/querysync/qsync/pkg/graph"
)

// Config is the top-level configuration for qsync.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Query   QueryConfig   `yaml:"query"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
}

// ProjectConfig defines the project boundary.
type ProjectConfig struct {
	Directories []string `yaml:"directories"` // workspace-relative; empty means everything
	Excludes    []string `yaml:"excludes"`    // directories or glob patterns
	Languages   []string `yaml:"languages"`   // java, kotlin, cc; empty means all
}

// QueryConfig controls how the graph input is obtained.
type QueryConfig struct {
	Timeout   int    `yaml:"timeout"` // seconds
	BazelPath string `yaml:"bazel_path"`
	BazelRC   string `yaml:"bazelrc"`
	// Input is a stored query output (path, s3:// or gs:// URI) to read
	// instead of running bazel.
	Input string `yaml:"input"`
}

// StorageConfig configures remote stores for query outputs. Credentials are
// read from the environment, never from the config file.
type StorageConfig struct {
	S3Region   string `yaml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint"` // for MinIO and other S3-compatible stores
}

// ServerConfig controls the query daemon.
type ServerConfig struct {
	Port           int `yaml:"port"`
	GraphCacheSize int `yaml:"graph_cache_size"` // graphs kept for delta and by-ID queries
	ReloadDebounce int `yaml:"reload_debounce"`  // milliseconds
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Query: QueryConfig{
			Timeout:   600,
			BazelPath: "bazelisk",
		},
		Storage: StorageConfig{
			S3Region: "us-east-1",
		},
		Server: ServerConfig{
			Port:           7077,
			GraphCacheSize: 8,
			ReloadDebounce: 500,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.Project.LanguageSet(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LanguageSet parses the configured languages.
func (p ProjectConfig) LanguageSet() (graph.LanguageSet, error) {
	var out graph.LanguageSet
	for _, name := range p.Languages {
		l, err := graph.ParseLanguage(name)
		if err != nil {
			return 0, err
		}
		out = out.With(l)
	}
	return out, nil
}

// QueryTimeout returns the query timeout as a duration.
func (q QueryConfig) QueryTimeout() time.Duration {
	return time.Duration(q.Timeout) * time.Second
}

// FindConfigFile looks for .qsync/config.yaml in the given directory
// and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".qsync", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the cache directory for a given workspace path.
// Uses ~/.cache/qsync/<repo-slug>/ to avoid polluting the repo.
func CacheDir(workspacePath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "qsync", repoSlug(workspacePath))
}

// QueryOutputDir returns where query outputs of a workspace are kept.
func QueryOutputDir(workspacePath string) string {
	return filepath.Join(CacheDir(workspacePath), "queries")
}

// repoSlug creates a filesystem-safe identifier from a workspace path.
// Uses the last two path components (e.g., "user_myrepo" from "/home/user/myrepo").
func repoSlug(workspacePath string) string {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		abs = workspacePath
	}
	dir := filepath.Base(filepath.Dir(abs))
	base := filepath.Base(abs)
	return dir + "_" + base
}

// FindWorkspaceRoot walks up from dir looking for MODULE.bazel or WORKSPACE files.
func FindWorkspaceRoot(dir string) (string, error) {
	for {
		for _, marker := range []string{"MODULE.bazel", "WORKSPACE", "WORKSPACE.bazel"} {
			candidate := filepath.Join(dir, marker)
			if _, err := os.Stat(candidate); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no Bazel workspace found (looked for MODULE.bazel or WORKSPACE)")
}
