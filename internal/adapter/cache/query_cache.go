package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"docqa/internal/domain"
)

// Key identifies one retrieval: the document, the question and how many
// chunks were asked for in which order.
type Key struct {
	Hash          string
	Question      string
	K             int
	SortByChunkID bool
}

func (k Key) digest() string {
	h := sha256.New()
	h.Write([]byte(k.Hash))
	h.Write([]byte{0})
	h.Write([]byte(k.Question))
	var buf [9]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(k.K))
	if k.SortByChunkID {
		buf[8] = 1
	}
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// QueryCache is an LRU cache of retrieval results with a TTL. Invalidate
// bumps a generation so results computed before an ingest or delete are
// never served afterwards.
type QueryCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	results   []domain.ChunkMatch
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *QueryCache) Get(k Key) ([]domain.ChunkMatch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := k.digest()
	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return entry.results, true
}

// Generation reports the current invalidation generation. Callers read it
// before computing a result and hand it to PutAt.
func (c *QueryCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexGen
}

// Put stores results under the current generation.
func (c *QueryCache) Put(k Key, results []domain.ChunkMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(k, results)
}

// PutAt stores results computed while gen was current. It drops them and
// returns false when an Invalidate happened in between.
func (c *QueryCache) PutAt(k Key, gen uint64, results []domain.ChunkMatch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.indexGen {
		return false
	}
	c.put(k, results)
	return true
}

func (c *QueryCache) put(k Key, results []domain.ChunkMatch) {
	key := k.digest()
	entry := &cacheEntry{
		results:   results,
		timestamp: c.now(),
		indexGen:  c.indexGen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
