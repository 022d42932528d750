package process

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"copilot-gateway/internal/core"

	"github.com/bytedance/sonic"
)

// ModelFetcher returns the raw upstream model listing.
type ModelFetcher interface {
	Models(ctx context.Context) ([]byte, error)
}

// Catalog caches the upstream model listing and the capability descriptors
// derived from it.
type Catalog struct {
	mu          sync.RWMutex
	raw         []byte
	descriptors map[string]core.CapabilityDescriptor
	loadedAt    time.Time
	now         func() time.Time
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		descriptors: map[string]core.CapabilityDescriptor{},
		now:         time.Now,
	}
}

// Load replaces the catalog contents with a raw listing.
func (c *Catalog) Load(raw []byte) error {
	var list core.ModelList
	if err := sonic.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("decode model list: %w", err)
	}

	descriptors := make(map[string]core.CapabilityDescriptor, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		descriptors[m.ID] = m.Descriptor()
	}

	c.mu.Lock()
	c.raw = append([]byte(nil), raw...)
	c.descriptors = descriptors
	c.loadedAt = c.now()
	c.mu.Unlock()
	return nil
}

// Refresh fetches the listing and loads it.
func (c *Catalog) Refresh(ctx context.Context, fetcher ModelFetcher) error {
	raw, err := fetcher.Models(ctx)
	if err != nil {
		return fmt.Errorf("fetch models: %w", err)
	}
	return c.Load(raw)
}

// Lookup returns the descriptor of a model id.
func (c *Catalog) Lookup(model string) (core.CapabilityDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.descriptors[model]
	return d, ok
}

// Raw returns the listing exactly as the upstream sent it, or nil before the
// first load.
func (c *Catalog) Raw() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.raw
}

// Descriptors returns all descriptors ordered by model id.
func (c *Catalog) Descriptors() []core.CapabilityDescriptor {
	c.mu.RLock()
	out := make([]core.CapabilityDescriptor, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		out = append(out, d)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadedAt reports when the catalog was last loaded.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
