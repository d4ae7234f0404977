package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	defaultMachineTTL = 10 * time.Minute
	defaultProductTTL = 10 * time.Minute
)

// IngestResolverCache stores hot-path existence lookups for fact ingestion.
type IngestResolverCache interface {
	MachineKnown(id snowflake.ID) bool
	RememberMachine(id snowflake.ID)
	ProductKnown(id snowflake.ID) bool
	RememberProduct(id snowflake.ID)
}

type ingestResolverCache struct {
	machines   Cache[snowflake.ID, struct{}]
	products   Cache[snowflake.ID, struct{}]
	machineTTL time.Duration
	productTTL time.Duration
}

// NewIngestResolverCache returns an in-memory cache tuned for fact ingest.
func NewIngestResolverCache() IngestResolverCache {
	return &ingestResolverCache{
		machines:   NewTTLCache[snowflake.ID, struct{}](),
		products:   NewTTLCache[snowflake.ID, struct{}](),
		machineTTL: defaultMachineTTL,
		productTTL: defaultProductTTL,
	}
}

func (c *ingestResolverCache) MachineKnown(id snowflake.ID) bool {
	_, ok := c.machines.Get(id)
	return ok
}

func (c *ingestResolverCache) RememberMachine(id snowflake.ID) {
	c.machines.Set(id, struct{}{}, c.machineTTL)
}

func (c *ingestResolverCache) ProductKnown(id snowflake.ID) bool {
	_, ok := c.products.Get(id)
	return ok
}

func (c *ingestResolverCache) RememberProduct(id snowflake.ID) {
	c.products.Set(id, struct{}{}, c.productTTL)
}
