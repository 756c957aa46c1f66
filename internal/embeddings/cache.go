package embeddings

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cache defines the interface for embedding cache
type Cache interface {
	// GetMulti returns the cached embeddings found among keys
	GetMulti(ctx context.Context, keys []string) (map[string][]float32, error)

	// SetMulti stores embeddings by key
	SetMulti(ctx context.Context, embeddings map[string][]float32) error
}

// GenerateCacheKey creates a cache key from model and text
func GenerateCacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model + ":" + text))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// CachedClient wraps a Client with caching
type CachedClient struct {
	client *Client
	cache  Cache
}

// NewCachedClient creates a new cached embedding client
func NewCachedClient(client *Client, cache Cache) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cache,
	}
}

// EmbedTexts generates embeddings, asking the API only for texts not in the cache
func (c *CachedClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = GenerateCacheKey(c.client.model, text)
	}

	cached, err := c.cache.GetMulti(ctx, keys)
	if err != nil {
		cached = make(map[string][]float32)
	}

	var uncachedTexts []string
	var uncachedIndices []int
	for i, key := range keys {
		if _, ok := cached[key]; !ok {
			uncachedTexts = append(uncachedTexts, texts[i])
			uncachedIndices = append(uncachedIndices, i)
		}
	}

	results := make([][]float32, len(texts))
	for i, key := range keys {
		results[i] = cached[key]
	}

	if len(uncachedTexts) > 0 {
		fresh, err := c.client.EmbedTexts(ctx, uncachedTexts)
		if err != nil {
			return nil, err
		}

		toCache := make(map[string][]float32, len(fresh))
		for i, idx := range uncachedIndices {
			results[idx] = fresh[i]
			toCache[keys[idx]] = fresh[i]
		}
		_ = c.cache.SetMulti(ctx, toCache) // cache errors are not fatal
	}

	return results, nil
}

// EmbedText generates an embedding for a single text with caching
func (c *CachedClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	results, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Dimension returns the embedding dimension
func (c *CachedClient) Dimension() int {
	return c.client.Dimension()
}

// MemoryCache is a bounded in-process LRU cache
type MemoryCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type memoryEntry struct {
	key       string
	embedding []float32
}

// NewMemoryCache creates a cache holding at most max embeddings
func NewMemoryCache(max int) *MemoryCache {
	if max <= 0 {
		max = 10000
	}
	return &MemoryCache{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// GetMulti implements Cache
func (m *MemoryCache) GetMulti(_ context.Context, keys []string) (map[string][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := make(map[string][]float32)
	for _, k := range keys {
		if el, ok := m.entries[k]; ok {
			m.order.MoveToFront(el)
			found[k] = el.Value.(*memoryEntry).embedding
		}
	}
	return found, nil
}

// SetMulti implements Cache
func (m *MemoryCache) SetMulti(_ context.Context, embeddings map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range embeddings {
		if el, ok := m.entries[k]; ok {
			el.Value.(*memoryEntry).embedding = v
			m.order.MoveToFront(el)
			continue
		}
		m.entries[k] = m.order.PushFront(&memoryEntry{key: k, embedding: v})
		for m.order.Len() > m.max {
			oldest := m.order.Back()
			m.order.Remove(oldest)
			delete(m.entries, oldest.Value.(*memoryEntry).key)
		}
	}
	return nil
}

// Len returns the number of cached embeddings
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
