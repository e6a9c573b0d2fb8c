package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/querysync/qsync/pkg/graph"
)

// LoadGraph parses query outputs concurrently and builds one graph from them.
func LoadGraph(ctx context.Context, p *Project, outputs ...[]byte) (*graph.BuildGraph, error) {
	summaries := make([]*Summary, len(outputs))

	g, ctx := errgroup.WithContext(ctx)
	for i, data := range outputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := ParseQueryOutput(data)
			if err != nil {
				return fmt.Errorf("query output %d: %w", i, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := newSummary()
	for _, s := range summaries {
		merged.Merge(s)
	}
	return Convert(merged, p)
}

// Sync queries the workspace and builds a fresh graph. It also returns the
// raw query outputs so callers can publish them.
func Sync(ctx context.Context, q *Querier, p *Project) (*graph.BuildGraph, [][]byte, error) {
	outputs, err := q.Query(ctx, p)
	if err != nil {
		return nil, nil, fmt.Errorf("querying project: %w", err)
	}
	g, err := LoadGraph(ctx, p, outputs...)
	if err != nil {
		return nil, nil, err
	}
	return g, outputs, nil
}
