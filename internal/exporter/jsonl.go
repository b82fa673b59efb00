package exporter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/primal-host/skystream/internal/types"
)

// JSONL appends one compact JSON object per post record, LF-terminated.
// Non-post records are ignored.
type JSONL struct {
	w     *bufio.Writer
	close func() error
}

// NewJSONL opens (appending) or creates the output file.
func NewJSONL(path string) (*JSONL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("exporter: open %s: %w", path, err)
	}
	return &JSONL{w: bufio.NewWriter(f), close: f.Close}, nil
}

// NewJSONLWriter wraps an arbitrary writer, for tests and pipes.
func NewJSONLWriter(w io.Writer) *JSONL {
	return &JSONL{w: bufio.NewWriter(w), close: func() error { return nil }}
}

// Export writes the post as one JSON line and flushes it.
func (j *JSONL) Export(_ context.Context, rec *types.Record) error {
	if rec.Kind != types.KindPost {
		return nil
	}

	line, err := json.Marshal(rec.Post)
	if err != nil {
		return fmt.Errorf("exporter: marshal post %s: %w", rec.Post.ID, err)
	}
	if _, err := j.w.Write(line); err != nil {
		return fmt.Errorf("exporter: write post %s: %w", rec.Post.ID, err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("exporter: write post %s: %w", rec.Post.ID, err)
	}
	if err := j.w.Flush(); err != nil {
		return fmt.Errorf("exporter: flush: %w", err)
	}
	return nil
}

// Close flushes buffered output and closes the file.
func (j *JSONL) Close() error {
	if err := j.w.Flush(); err != nil {
		return err
	}
	return j.close()
}
