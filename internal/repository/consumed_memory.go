package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryConsumedStore - отметки о погашении в памяти процесса.
// Годится для одного инстанса; при нескольких нужен Redis.
type MemoryConsumedStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

func NewMemoryConsumedStore() *MemoryConsumedStore {
	return &MemoryConsumedStore{items: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryConsumedStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.items[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.items[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryConsumedStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Sweep удаляет истёкшие отметки.
func (s *MemoryConsumedStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, exp := range s.items {
		if !now.Before(exp) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// StartSweeper периодически чистит истёкшие отметки до отмены ctx.
func (s *MemoryConsumedStore) StartSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}
