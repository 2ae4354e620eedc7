package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"
)

type cacheEntry struct {
	index        *Index
	lastAccessed time.Time
}

// IndexCache keeps built document indexes keyed by upload id so a session's
// follow-up turns do not rebuild the index on every request. Replacing the
// upload changes the key, so a stale index is simply never hit again.
type IndexCache struct {
	lock    sync.Mutex
	entries map[uuid.UUID]*cacheEntry
	maxSize int
}

func NewIndexCache(maxSize int) *IndexCache {
	return &IndexCache{
		entries: make(map[uuid.UUID]*cacheEntry, maxSize),
		maxSize: maxSize,
	}
}

func (c *IndexCache) GetOrBuild(ctx context.Context, embedder embeddings.Embedder, uploadId uuid.UUID, text string) (*Index, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	entry, exists := c.entries[uploadId]
	if !exists {
		if len(c.entries) >= c.maxSize {
			oldestId := uuid.Nil
			var oldestTime time.Time
			for id, e := range c.entries {
				if oldestId == uuid.Nil || e.lastAccessed.Before(oldestTime) {
					oldestId = id
					oldestTime = e.lastAccessed
				}
			}
			delete(c.entries, oldestId)
		}

		index, err := BuildIndex(ctx, embedder, text)
		if err != nil {
			return nil, err
		}
		entry = &cacheEntry{index: index}
		c.entries[uploadId] = entry
	}

	entry.lastAccessed = time.Now()
	return entry.index, nil
}
