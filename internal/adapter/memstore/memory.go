package memstore

import (
	"context"
	"fmt"
	"sync"

	"docqa/internal/adapter/store"
	"docqa/internal/domain"
)

// MemoryIndex is a process-local chunk collection. Nothing survives Close.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]domain.ChunkRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]domain.ChunkRecord)}
}

func (s *MemoryIndex) Add(_ context.Context, records []domain.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
	}
	for _, rec := range records {
		rec.Vector = append([]float32(nil), rec.Vector...)
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *MemoryIndex) Query(_ context.Context, vector []float32, n int, filter domain.Filter) ([]domain.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.RankRecords(s.records, vector, n, filter)
}

func (s *MemoryIndex) Get(_ context.Context, filter domain.Filter) ([]domain.ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.SelectRecords(s.records, filter)
}

func (s *MemoryIndex) Delete(_ context.Context, filter domain.Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.records {
		if filter.Matches(rec.Metadata) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryIndex) Close() error {
	return nil
}
