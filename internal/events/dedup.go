package events

import (
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultDedupTTL is how long a delivered change id is remembered.
const DefaultDedupTTL = 10 * time.Minute

// Deduplicator suppresses redeliveries of the same change. The change stream is
// at-least-once, so a broker reconnect may replay messages already applied.
// Changes without an id always pass.
type Deduplicator struct {
	seen       *cache.Cache
	suppressed atomic.Uint64
}

// NewDeduplicator remembers change ids for ttl.
func NewDeduplicator(ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduplicator{seen: cache.New(ttl, 2*ttl)}
}

// ShouldProcess reports whether c has not been seen within the ttl and marks it seen.
func (d *Deduplicator) ShouldProcess(c Change) bool {
	if d == nil {
		return true
	}
	id := c.ChangeID()
	if id == "" {
		return true
	}
	if err := d.seen.Add(c.Table()+"/"+id, struct{}{}, cache.DefaultExpiration); err != nil {
		d.suppressed.Add(1)
		return false
	}
	return true
}

// Suppressed returns the number of dropped redeliveries.
func (d *Deduplicator) Suppressed() uint64 {
	return d.suppressed.Load()
}
