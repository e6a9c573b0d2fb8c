// Package reload rebuilds the graph when its query output changes on disk.
package reload

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/querysync/qsync/internal/metrics"
	"github.com/querysync/qsync/pkg/graph"
)

// LoadFunc builds a graph from the watched file.
type LoadFunc func(ctx context.Context) (*graph.BuildGraph, error)

// PublishFunc receives each successfully built graph.
type PublishFunc func(*graph.BuildGraph)

// Watcher monitors a query output file and republishes the graph when it
// changes. A failed rebuild leaves the previously published graph in place.
type Watcher struct {
	path     string
	debounce time.Duration
	load     LoadFunc
	publish  PublishFunc

	mu   sync.Mutex // serializes reloads
	last *graph.BuildGraph

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for path. Reloads start debounce after the
// last change event.
func NewWatcher(path string, debounce time.Duration, load LoadFunc, publish PublishFunc) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		load:     load,
		publish:  publish,
		stop:     make(chan struct{}),
	}
}

// Start begins watching the file.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Watch the directory to handle atomic saves (where the file is replaced)
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer watcher.Close()

		log.Printf("Watching query output %s", w.path)

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(w.debounce, func() {
					if err := w.Reload(ctx); err != nil {
						log.Printf("Reload failed, keeping previous graph: %v", err)
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Query output watcher error: %v", err)

			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	w.wg.Wait()
}

// Reload rebuilds and publishes the graph now.
func (w *Watcher) Reload(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	g, err := w.load(ctx)
	if err != nil {
		metrics.ReloadsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("loading %s: %w", w.path, err)
	}
	metrics.GraphBuildSeconds.Observe(time.Since(start).Seconds())
	metrics.ReloadsTotal.WithLabelValues("ok").Inc()

	if w.last != nil {
		d := graph.ComputeDelta(w.last, g)
		log.Printf("Graph %s replaces %s: +%d -%d ~%d targets, +%d -%d packages",
			g.ID(), w.last.ID(),
			d.Stats.AddedTargetCount, d.Stats.RemovedTargetCount, d.Stats.ChangedTargetCount,
			d.Stats.AddedPackageCount, d.Stats.RemovedPackageCount)
	} else {
		log.Printf("Graph %s loaded: %d targets", g.ID(), g.Stats().TargetCount)
	}
	w.last = g
	w.publish(g)
	return nil
}
