package store

import (
	"fmt"
	"math"
	"sort"

	"docqa/internal/domain"
)

// RankRecords applies filter first and then returns the n records most
// similar to vector. Ties are broken by document order.
func RankRecords(records map[string]domain.ChunkRecord, vector []float32, n int, filter domain.Filter) ([]domain.ChunkMatch, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", domain.ErrInvalidInput, n)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	matches := make([]domain.ChunkMatch, 0, len(records))
	for _, rec := range records {
		if !filter.Matches(rec.Metadata) {
			continue
		}
		matches = append(matches, domain.ChunkMatch{
			Record: rec,
			Score:  CosineSimilarity(vector, rec.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return recordLess(matches[i].Record, matches[j].Record)
	})

	if n < len(matches) {
		matches = matches[:n]
	}
	return matches, nil
}

// SelectRecords returns copies of every record matching filter in document order.
func SelectRecords(records map[string]domain.ChunkRecord, filter domain.Filter) ([]domain.ChunkRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var out []domain.ChunkRecord
	for _, rec := range records {
		if filter.Matches(rec.Metadata) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return recordLess(out[i], out[j]) })
	return out, nil
}

func recordLess(a, b domain.ChunkRecord) bool {
	if a.Metadata.Hash != b.Metadata.Hash {
		return a.Metadata.Hash < b.Metadata.Hash
	}
	if a.Metadata.ChunkID != b.Metadata.ChunkID {
		return a.Metadata.ChunkID < b.Metadata.ChunkID
	}
	return a.ID < b.ID
}

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
