package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// Registry maps document display names to content hashes. It mirrors the
// index: Load rebuilds it from stored metadata and ChunkStore keeps it in
// step with every upsert and delete.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]string)}
}

// Load replaces the registry contents with every distinct (source, hash)
// pair found in index.
func (r *Registry) Load(ctx context.Context, index port.ChunkIndex) error {
	records, err := index.Get(ctx, domain.Filter{})
	if err != nil {
		return fmt.Errorf("failed to scan index: %w", err)
	}

	names := make(map[string]string)
	for _, rec := range records {
		names[rec.Metadata.Source] = rec.Metadata.Hash
	}

	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
	return nil
}

// List returns a copy of the name to hash mapping.
func (r *Registry) List() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.names))
	for k, v := range r.names {
		out[k] = v
	}
	return out
}

// Documents returns the registry sorted by name.
func (r *Registry) Documents() []domain.Document {
	r.mu.RLock()
	docs := make([]domain.Document, 0, len(r.names))
	for name, hash := range r.names {
		docs = append(docs, domain.Document{Name: name, Hash: hash})
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs
}

func (r *Registry) Register(name, hash string) {
	r.mu.Lock()
	r.names[name] = hash
	r.mu.Unlock()
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash, ok := r.names[name]
	return hash, ok
}

// ResolveName returns the first name, in name order, registered to hash.
func (r *Registry) ResolveName(hash string) (string, error) {
	for _, doc := range r.Documents() {
		if doc.Hash == hash {
			return doc.Name, nil
		}
	}
	return "", fmt.Errorf("no document registered for hash %s: %w", hash, domain.ErrNotFound)
}

// NamesFor returns every name registered to hash, sorted.
func (r *Registry) NamesFor(hash string) []string {
	var names []string
	for _, doc := range r.Documents() {
		if doc.Hash == hash {
			names = append(names, doc.Name)
		}
	}
	return names
}
