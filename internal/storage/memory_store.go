package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore хранит тики в памяти.
// Используется по умолчанию и в тестах. Данные теряются при перезапуске.
type MemoryStore struct {
	mu       sync.RWMutex
	episodes map[string]map[int]Record
	closed   bool
}

// NewMemoryStore создаёт хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{episodes: make(map[string]map[int]Record)}
}

// Save сохраняет тик
func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotReady
	}

	ticks, ok := s.episodes[rec.EpisodeID]
	if !ok {
		ticks = make(map[int]Record)
		s.episodes[rec.EpisodeID] = ticks
	}
	ticks[rec.Tick] = rec
	return nil
}

// Load загружает тик
func (s *MemoryStore) Load(ctx context.Context, episodeID string, tick int) (Record, bool, error) {
	if err := checkContext(ctx); err != nil {
		return Record{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, false, ErrNotReady
	}

	rec, ok := s.episodes[episodeID][tick]
	return rec, ok, nil
}

// Range возвращает тики from..to по возрастанию
func (s *MemoryStore) Range(ctx context.Context, episodeID string, from, to int) ([]Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrNotReady
	}

	result := make([]Record, 0)
	for tick, rec := range s.episodes[episodeID] {
		if tick >= from && tick <= to {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Tick < result[j].Tick })
	return result, nil
}

// Episodes возвращает ID эпизодов
func (s *MemoryStore) Episodes(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.episodes))
	for id := range s.episodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close закрывает хранилище
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
