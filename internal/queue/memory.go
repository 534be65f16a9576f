package queue

import (
	"context"
	"sync"

	"github.com/deixis/sift/internal/workitem"
)

// Memory collects items in memory. Dry runs use it to preview what would be
// queued.
type Memory struct {
	mu    sync.Mutex
	items []workitem.Item
}

func (m *Memory) Add(_ context.Context, item workitem.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

// Items returns a copy of the collected items in insertion order.
func (m *Memory) Items() []workitem.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]workitem.Item(nil), m.items...)
}

// Len returns the number of collected items.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
