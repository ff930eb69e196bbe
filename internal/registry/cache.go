// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"sync"

	"github.com/gvern/soxauto/internal/contract"
)

type cacheKey struct {
	datasetID string
	version   int
}

// Cache holds parsed contracts keyed by (dataset_id, version). Entries are
// never evicted: a given version is immutable for the life of the process.
// A Cache may be shared by several registries.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*contract.SchemaContract
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*contract.SchemaContract)}
}

// Get returns the cached contract for (datasetID, version).
func (c *Cache) Get(datasetID string, version int) (*contract.SchemaContract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.entries[cacheKey{datasetID, version}]
	return sc, ok
}

// Put stores sc unless an entry already exists, and returns the entry that is
// cached afterwards. The first stored pointer wins.
func (c *Cache) Put(sc *contract.SchemaContract) *contract.SchemaContract {
	key := cacheKey{sc.DatasetID(), sc.Version()}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = sc
	return sc
}

// Len returns the number of cached contracts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
