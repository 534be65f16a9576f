package report

import (
	"container/list"
	"sync"
)

// LRUStore holds the last few runs in memory in front of a slower Store.
// Saves go to both; loads that miss are read from the backing store and
// kept.
type LRUStore struct {
	back Store

	mu    sync.Mutex
	limit int
	order *list.List // of *Run, front is the most recently used
	byID  map[string]*list.Element
}

// NewLRUStore keeps up to limit runs in memory, at least one.
func NewLRUStore(limit int, back Store) *LRUStore {
	return &LRUStore{
		back:  back,
		limit: max(limit, 1),
		order: list.New(),
		byID:  make(map[string]*list.Element),
	}
}

func (s *LRUStore) Save(run *Run) error {
	s.put(run)
	return s.back.Save(run)
}

func (s *LRUStore) Load(runID string) (*Run, error) {
	s.mu.Lock()
	if el, ok := s.byID[runID]; ok {
		s.order.MoveToFront(el)
		run := el.Value.(*Run)
		s.mu.Unlock()
		return run, nil
	}
	s.mu.Unlock()

	run, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(run)
	return run, nil
}

// Recent lists the IDs held in memory, most recently used first.
func (s *LRUStore) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(*Run).ID)
	}
	return ids
}

// put makes run the most recently used entry, replacing any entry with the
// same ID and dropping the oldest past the limit.
func (s *LRUStore) put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byID[run.ID]; ok {
		el.Value = run
		s.order.MoveToFront(el)
		return
	}
	s.byID[run.ID] = s.order.PushFront(run)
	for s.order.Len() > s.limit {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.byID, oldest.Value.(*Run).ID)
	}
}
