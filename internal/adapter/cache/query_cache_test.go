package cache

import (
	"testing"
	"time"

	"docqa/internal/domain"
)

func matches(texts ...string) []domain.ChunkMatch {
	out := make([]domain.ChunkMatch, len(texts))
	for i, t := range texts {
		out[i] = domain.ChunkMatch{Record: domain.ChunkRecord{Text: t}}
	}
	return out
}

func TestQueryCacheHitAndKeyFields(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	k := Key{Hash: "h", Question: "what?", K: 5}
	c.Put(k, matches("a"))

	got, ok := c.Get(k)
	if !ok || len(got) != 1 || got[0].Record.Text != "a" {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	for _, other := range []Key{
		{Hash: "g", Question: "what?", K: 5},
		{Hash: "h", Question: "what?", K: 4},
		{Hash: "h", Question: "what?", K: 5, SortByChunkID: true},
	} {
		if _, ok := c.Get(other); ok {
			t.Errorf("unexpected hit for %+v", other)
		}
	}
}

func TestQueryCacheInvalidate(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	k := Key{Hash: "h", Question: "q", K: 1}
	c.Put(k, matches("a"))
	c.Invalidate()

	if _, ok := c.Get(k); ok {
		t.Error("expected miss after Invalidate")
	}
	if c.Size() != 0 {
		t.Errorf("expected empty cache, got %d", c.Size())
	}
}

func TestQueryCacheTTL(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	k := Key{Hash: "h", Question: "q", K: 1}
	c.Put(k, matches("a"))

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(k); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestQueryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewQueryCache(2, time.Minute)
	a := Key{Hash: "h", Question: "a", K: 1}
	b := Key{Hash: "h", Question: "b", K: 1}
	d := Key{Hash: "h", Question: "d", K: 1}

	c.Put(a, matches("a"))
	c.Put(b, matches("b"))
	c.Get(a) // a is now most recent
	c.Put(d, matches("d"))

	if _, ok := c.Get(b); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get(a); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := c.Get(d); !ok {
		t.Error("expected d to be present")
	}
}

func TestQueryCachePutAtDropsStaleGeneration(t *testing.T) {
	c := NewQueryCache(10, time.Minute)
	k := Key{Hash: "h", Question: "what?", K: 5}

	gen := c.Generation()
	c.Invalidate()
	if c.PutAt(k, gen, matches("deleted")) {
		t.Fatal("expected result from before the invalidation to be dropped")
	}
	if _, ok := c.Get(k); ok {
		t.Fatal("stale result must not be served")
	}

	gen = c.Generation()
	if !c.PutAt(k, gen, matches("fresh")) {
		t.Fatal("expected put under the current generation to succeed")
	}
	got, ok := c.Get(k)
	if !ok || got[0].Record.Text != "fresh" {
		t.Fatalf("expected fresh hit, got %v %v", got, ok)
	}
}
