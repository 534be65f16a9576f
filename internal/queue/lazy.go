package queue

import (
	"context"
	"io"
	"sync"

	"github.com/deixis/sift/internal/workitem"
)

// Lazy opens the adapter described by its Config on the first Add, so a run
// that queues nothing never touches the file or database.
type Lazy struct {
	cfg Config

	mu     sync.Mutex
	q      Queue
	closer io.Closer
}

// NewLazy returns a Lazy queue for cfg.
func NewLazy(cfg Config) *Lazy {
	return &Lazy{cfg: cfg}
}

// Add opens the adapter if needed and adds item to it. A failed open is
// retried on the next Add.
func (l *Lazy) Add(ctx context.Context, item workitem.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.q == nil {
		q, c, err := Open(ctx, l.cfg)
		if err != nil {
			return err
		}
		l.q, l.closer = q, c
	}
	return l.q.Add(ctx, item)
}

// Opened reports whether the adapter has been opened.
func (l *Lazy) Opened() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q != nil
}

// Close releases the adapter, if it was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.q, l.closer = nil, nil
	return err
}
