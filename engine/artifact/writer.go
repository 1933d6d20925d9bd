package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Writer performs atomic, deterministic writes into a run's output
// directory: every file is written to a temporary sibling and renamed
// into place, guarded by a per-path file lock so concurrent steps
// writing to the same artifact (e.g. an append-only JSONL log) never
// interleave partial writes.
type Writer struct {
	baseDir string
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// WriteFile atomically writes data to relPath under the writer's base
// directory: write-temp-then-rename so a reader never observes a
// partially written file, even if the process is killed mid-write.
func (w *Writer) WriteFile(relPath string, data []byte) error {
	fullPath := filepath.Join(w.baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	lock := flock.New(fullPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock artifact %s: %w", relPath, err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", relPath, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", relPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file for %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", relPath, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place for %s: %w", relPath, err)
	}
	return nil
}

// AppendLine locks relPath and appends line followed by a newline; used
// for the per-run retrieval log (rag/<pipeline>.jsonl), where entries
// accumulate as units run.
func (w *Writer) AppendLine(relPath string, line []byte) error {
	fullPath := filepath.Join(w.baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	lock := flock.New(fullPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock artifact %s: %w", relPath, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(fullPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s for append: %w", relPath, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", relPath, err)
	}
	return f.Sync()
}
