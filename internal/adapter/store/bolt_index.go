package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
)

var (
	bucketChunks = []byte("chunks")
	bucketMeta   = []byte("meta")
)

// BoltIndex is a persistent chunk collection backed by a single bbolt file.
// Records are kept in memory as well for brute-force similarity search.
type BoltIndex struct {
	db        *bbolt.DB
	mu        sync.RWMutex
	records   map[string]domain.ChunkRecord
	dimension int
}

func OpenBoltIndex(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	idx := &BoltIndex{
		db:      db,
		records: make(map[string]domain.ChunkRecord),
	}
	if err := idx.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	return idx, nil
}

func (s *BoltIndex) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var rec domain.ChunkRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
			s.records[string(k)] = rec
			if s.dimension == 0 {
				s.dimension = len(rec.Vector)
			}
			return nil
		})
	})
}

// Add inserts or replaces records. All vectors in the collection must share one dimension.
func (s *BoltIndex) Add(ctx context.Context, records []domain.ChunkRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
		}
		if len(rec.Vector) == 0 {
			return fmt.Errorf("%w: record %s has no vector", domain.ErrInvalidInput, rec.ID)
		}
		if dim == 0 {
			dim = len(rec.Vector)
		}
		if len(rec.Vector) != dim {
			return fmt.Errorf("%w: vector dimension mismatch: expected %d, got %d", domain.ErrInvalidInput, dim, len(rec.Vector))
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for _, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	s.dimension = dim
	return nil
}

// Query ranks records matching filter by cosine similarity to vector.
func (s *BoltIndex) Query(ctx context.Context, vector []float32, n int, filter domain.Filter) ([]domain.ChunkMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d", domain.ErrInvalidInput, s.dimension, len(vector))
	}
	return RankRecords(s.records, vector, n, filter)
}

func (s *BoltIndex) Get(ctx context.Context, filter domain.Filter) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SelectRecords(s.records, filter)
}

func (s *BoltIndex) Delete(ctx context.Context, filter domain.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, rec := range s.records {
		if filter.Matches(rec.Metadata) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		delete(s.records, id)
	}
	if len(s.records) == 0 {
		s.dimension = 0
	}
	return len(ids), nil
}

// Count returns the number of stored records.
func (s *BoltIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *BoltIndex) Close() error {
	return s.db.Close()
}
