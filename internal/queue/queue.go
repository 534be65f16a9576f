// Package queue delivers work items to the work queue. The queue itself is
// owned by another system; these adapters only add items to it.
package queue

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/deixis/sift/internal/workitem"
)

// Queue accepts fully formed work items.
type Queue interface {
	Add(ctx context.Context, item workitem.Item) error
}

// Kinds accepted by Open.
const (
	KindJSONL    = "jsonl"
	KindPostgres = "postgres"
	KindStdout   = "stdout"
)

// Config selects and configures a queue adapter.
type Config struct {
	Kind        string // default KindJSONL
	Path        string // JSONL file
	DatabaseURL string // Postgres connection string
	Stdout      io.Writer
}

// Open returns the adapter described by cfg. The returned closer releases
// any file or connection the adapter holds.
func Open(ctx context.Context, cfg Config) (Queue, io.Closer, error) {
	switch cfg.Kind {
	case "", KindJSONL:
		if cfg.Path == "" {
			return nil, nil, fmt.Errorf("queue: jsonl queue requires a path")
		}
		q, err := OpenJSONL(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return q, q, nil
	case KindStdout:
		w := cfg.Stdout
		if w == nil {
			w = os.Stdout
		}
		return NewJSONL(w), nopCloser{}, nil
	case KindPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("queue: postgres queue requires database_url")
		}
		q, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return q, q, nil
	default:
		return nil, nil, fmt.Errorf("queue: unknown kind %q (want %s, %s or %s)",
			cfg.Kind, KindJSONL, KindPostgres, KindStdout)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
