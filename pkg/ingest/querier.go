// Package ingest turns bazel query output into a project build graph.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// maxQueryLength is the max total pattern length before splitting into chunks.
const maxQueryLength = 75000

// Querier runs bazel query over the project.
type Querier struct {
	WorkspacePath string
	BazelPath     string
	BazelRC       string
	Timeout       time.Duration
}

// Query returns one XML query output per chunk of project patterns.
func (q *Querier) Query(ctx context.Context, p *Project) ([][]byte, error) {
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	excludes := p.ExcludePatterns()
	var outputs [][]byte
	for _, chunk := range chunkPatterns(p.QueryPatterns(), maxQueryLength) {
		out, err := q.runQuery(ctx, buildQueryExpr(chunk, excludes))
		if err != nil {
			return nil, fmt.Errorf("query chunk failed: %w", err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (q *Querier) runQuery(ctx context.Context, expr string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, q.bazel(), q.args(expr)...)
	cmd.Dir = q.WorkspacePath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// bazel query with --keep_going may exit non-zero but still produce output
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("bazel query failed: %w\nstderr: %s", err, stderr.String())
		}
	}
	return stdout.Bytes(), nil
}

func (q *Querier) bazel() string {
	if q.BazelPath == "" {
		return "bazelisk"
	}
	return q.BazelPath
}

func (q *Querier) args(expr string) []string {
	// Startup options (before the command) must come first
	var args []string
	if q.BazelRC != "" {
		args = append(args, "--bazelrc="+q.BazelRC)
	}
	args = append(args, "--nohome_rc")

	args = append(args, "query", expr,
		"--output=xml",
		"--relative_locations=true",
		"--order_output=no",
		"--keep_going",
		"--noimplicit_deps",
	)
	return args
}

func buildQueryExpr(patterns, excludes []string) string {
	expr := strings.Join(patterns, " + ")
	if len(patterns) > 1 {
		expr = "(" + expr + ")"
	}
	for _, exc := range excludes {
		expr += " - " + exc
	}
	return expr
}

// chunkPatterns splits patterns into chunks where the total length of each
// chunk is under maxLen, to avoid hitting Bazel's query length limits.
func chunkPatterns(patterns []string, maxLen int) [][]string {
	var chunks [][]string
	var current []string
	currentLen := 0

	for _, p := range patterns {
		pLen := len(p) + 3 // " + " separator
		if currentLen+pLen > maxLen && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			currentLen = 0
		}
		current = append(current, p)
		currentLen += pLen
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
