package embedding

import (
	"container/list"
	"context"
	"sync"
)

// EmbeddingCache is an LRU cache for embeddings keyed by text.
type EmbeddingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	entry := &cacheEntry{key: key, value: value}
	elem := c.lru.PushFront(entry)
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// CachedEmbedder serves repeated texts from an LRU cache. Returned slices are
// copies so callers may modify them.
type CachedEmbedder struct {
	inner Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return cloneVector(v), nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, cloneVector(v))
	return v, nil
}

// EmbedBatch embeds only the cache misses, in one inner batch call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = cloneVector(v)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, providerError("batch", errBatchLength(len(vecs), len(missTexts)))
	}
	for j, i := range missIdx {
		c.cache.Set(missTexts[j], cloneVector(vecs[j]))
		out[i] = vecs[j]
	}
	return out, nil
}

// Dimensions returns the inner embedder's dimension.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error { return c.inner.Close() }

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
