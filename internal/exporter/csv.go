package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/primal-host/skystream/internal/types"
)

// CSV appends one RFC-4180 row per post record. The column order is
// wire format for existing downstream consumers and repeats the text
// column; do not reorder.
//
//	id, author, text, created_at, text, labels, tags
//
// List columns are joined with ";". Non-post records are ignored.
type CSV struct {
	w     *csv.Writer
	close func() error
}

// NewCSV opens (appending) or creates the output file.
func NewCSV(path string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("exporter: open %s: %w", path, err)
	}
	return &CSV{w: csv.NewWriter(f), close: f.Close}, nil
}

// NewCSVWriter wraps an arbitrary writer, for tests and pipes.
func NewCSVWriter(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w), close: func() error { return nil }}
}

// Export writes the post row and flushes it.
func (c *CSV) Export(_ context.Context, rec *types.Record) error {
	if rec.Kind != types.KindPost {
		return nil
	}
	post := rec.Post

	row := []string{
		post.ID,
		post.Author,
		post.Text,
		post.CreatedAt.Format(time.RFC3339),
		post.Text,
		strings.Join(post.Labels, ";"),
		strings.Join(post.Tags, ";"),
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("exporter: write post %s: %w", post.ID, err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("exporter: flush: %w", err)
	}
	return nil
}

// Close flushes buffered output and closes the file.
func (c *CSV) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	return c.close()
}
