package querysource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// OutputName is the file name of the first query chunk in a cache directory.
const OutputName = "query.xml"

// ChunkName names query chunk i after base: "query.xml", "query.1.xml",
// "query.2.xml" and so on. base may be a path or a URI.
func ChunkName(base string, i int) string {
	if i == 0 {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + strconv.Itoa(i) + ext
}

func parseChunkName(base, name string) (int, bool) {
	if name == base {
		return 0, true
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext) + "."
	if !strings.HasPrefix(name, stem) || !strings.HasSuffix(name, ext) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, stem), ext))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// CachedChunks lists the query chunk files in dir in chunk order. A missing
// directory has no chunks.
func CachedChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading query output dir: %w", err)
	}
	type chunk struct {
		idx  int
		path string
	}
	var chunks []chunk
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		idx, ok := parseChunkName(OutputName, e.Name())
		if !ok {
			continue
		}
		chunks = append(chunks, chunk{idx, filepath.Join(dir, e.Name())})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].idx < chunks[j].idx })
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.path
	}
	return out, nil
}

// SaveChunks writes each query output into dir and removes chunks left over
// from a previous, larger query. Files are renamed into place so a watcher
// never reads a partial chunk.
func SaveChunks(dir string, outputs [][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating query output dir: %w", err)
	}
	stale, err := CachedChunks(dir)
	if err != nil {
		return err
	}
	for _, path := range stale {
		if idx, _ := parseChunkName(OutputName, filepath.Base(path)); idx >= len(outputs) {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("removing stale query output: %w", err)
			}
		}
	}

	// Write chunk 0 last: it is the file watchers listen on.
	for i := len(outputs) - 1; i >= 0; i-- {
		path := filepath.Join(dir, ChunkName(OutputName, i))
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, outputs[i], 0o644); err != nil {
			return fmt.Errorf("writing query output: %w", err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("writing query output: %w", err)
		}
	}
	return nil
}
