package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/deixis/sift/internal/workitem"
)

// JSONL appends one JSON object per line to a writer, usually a file that
// another process tails.
type JSONL struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
	f   *os.File
}

// NewJSONL writes items to w.
func NewJSONL(w io.Writer) *JSONL {
	return &JSONL{w: w, enc: json.NewEncoder(w)}
}

// OpenJSONL appends to the file at path, creating it and its parent
// directories when needed.
func OpenJSONL(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating queue dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening queue file: %w", err)
	}
	q := NewJSONL(f)
	q.f = f
	return q, nil
}

func (q *JSONL) Add(ctx context.Context, item workitem.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.enc.Encode(item); err != nil {
		return fmt.Errorf("writing work item %s: %w", item.ID, err)
	}
	return nil
}

// Close closes the underlying file when the queue owns one.
func (q *JSONL) Close() error {
	if q.f == nil {
		return nil
	}
	return q.f.Close()
}

// ReadJSONL decodes every item in r.
func ReadJSONL(r io.Reader) ([]workitem.Item, error) {
	var items []workitem.Item
	dec := json.NewDecoder(r)
	for {
		var it workitem.Item
		err := dec.Decode(&it)
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return items, fmt.Errorf("decoding work item: %w", err)
		}
		items = append(items, it)
	}
}
