package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mockvoice/mockvoice/internal/transcript"
)

// Writer archives call transcripts as markdown, one file per interview
// attempt.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join("data", "transcripts")
	}
	return &Writer{dir: dir}
}

// WriteTranscript replaces <dir>/<name>.md with entries and returns its path.
func (w *Writer) WriteTranscript(name string, entries []transcript.Entry) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	path := w.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		if _, err := fmt.Fprintln(f, e.FormatMarkdown()); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
	}

	return path, nil
}

func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name)+".md")
}
