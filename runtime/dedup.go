package runtime

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// DedupCache is a bounded set of recently seen message ids, used to
// drop a message observed twice: the bus is at-least-once, and the
// origin process sees its own publish come back on the subscription.
//
// It is best-effort only. Admission and eviction may lose entries
// under pressure; correctness does not depend on it because the store
// keys on the message id.
type DedupCache struct {
	cache *ristretto.Cache[string, struct{}]
	ttl   time.Duration
}

func NewDedupCache(maxEntries int64, ttl time.Duration) (*DedupCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, struct{}]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &DedupCache{cache: cache, ttl: ttl}, nil
}

// Seen marks an id as observed and reports whether it had already
// been observed within the TTL.
func (d *DedupCache) Seen(id string) bool {
	if _, found := d.cache.Get(id); found {
		return true
	}
	d.cache.SetWithTTL(id, struct{}{}, 1, d.ttl)
	return false
}

// Wait flushes pending admissions. Tests need deterministic
// visibility; production callers never do.
func (d *DedupCache) Wait() {
	d.cache.Wait()
}

func (d *DedupCache) Close() {
	d.cache.Close()
}
