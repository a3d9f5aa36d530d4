package pagecache

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/hmngo/pagebuf/internal/storage"
)

// VictimSelector chooses which resident page to evict. Implementations must
// never return a page with a nonzero pin count; returning ok=false means no
// eviction candidate exists.
type VictimSelector interface {
	Pick(resident map[storage.PageID]*CachedPage) (storage.PageID, bool)
}

// AccessObserver is notified about lookups and evictions so stateful
// selectors can maintain recency or frequency bookkeeping.
type AccessObserver interface {
	Accessed(page *CachedPage, hit bool)
	Evicted(id storage.PageID)
}

// FirstUnpinned is the default selector: the unpinned page with the lowest
// PageID. The order is deterministic but deliberately ignores the usage
// metadata; it approximates FIFO and is not LRU.
type FirstUnpinned struct{}

func (FirstUnpinned) Pick(resident map[storage.PageID]*CachedPage) (storage.PageID, bool) {
	var victim storage.PageID
	found := false
	for id, cp := range resident {
		if cp.PinCount() != 0 {
			continue
		}
		if !found || id < victim {
			victim = id
			found = true
		}
	}
	return victim, found
}

// trackedPagesDefault bounds the recency list of an LRUSelector attached to
// an unbounded cache.
const trackedPagesDefault = 65536

// LRUSelector evicts the least recently used unpinned page. Recency order is
// kept in a simplelru list fed by lookup notifications; pages the list lost
// track of fall back to FirstUnpinned.
type LRUSelector struct {
	order *simplelru.LRU[storage.PageID, struct{}]
}

var (
	_ VictimSelector = (*LRUSelector)(nil)
	_ AccessObserver = (*LRUSelector)(nil)
)

// NewLRUSelector tracks recency for up to capacity pages. Pass the cache's
// maxSize; capacity <= 0 falls back to a large default for unbounded caches.
func NewLRUSelector(capacity int) *LRUSelector {
	if capacity <= 0 {
		capacity = trackedPagesDefault
	}
	order, err := simplelru.NewLRU[storage.PageID, struct{}](capacity, nil)
	if err != nil {
		// simplelru only rejects capacity < 1, which is handled above.
		panic(err)
	}
	return &LRUSelector{order: order}
}

func (s *LRUSelector) Accessed(page *CachedPage, _ bool) {
	s.order.Add(page.ID(), struct{}{})
}

func (s *LRUSelector) Evicted(id storage.PageID) {
	s.order.Remove(id)
}

func (s *LRUSelector) Pick(resident map[storage.PageID]*CachedPage) (storage.PageID, bool) {
	for _, id := range s.order.Keys() { // oldest first
		if cp, ok := resident[id]; ok && cp.PinCount() == 0 {
			return id, true
		}
	}
	return FirstUnpinned{}.Pick(resident)
}

// LFUSelector evicts the unpinned page with the lowest access count, breaking
// ties on the lower PageID. It reads the usage metadata the cache already
// tracks and needs no bookkeeping of its own.
type LFUSelector struct{}

var _ VictimSelector = LFUSelector{}

func (LFUSelector) Pick(resident map[storage.PageID]*CachedPage) (storage.PageID, bool) {
	var victim storage.PageID
	var victimCount uint64
	found := false
	for id, cp := range resident {
		if cp.PinCount() != 0 {
			continue
		}
		count, _ := cp.Usage()
		if !found || count < victimCount || (count == victimCount && id < victim) {
			victim = id
			victimCount = count
			found = true
		}
	}
	return victim, found
}

// ClockSelector implements CLOCK (second chance) over the resident pages.
// Each lookup sets the page's ref bit; the sweep hand clears ref bits until
// it finds an unpinned page whose bit is already clear.
type ClockSelector struct {
	ring []storage.PageID
	ref  map[storage.PageID]bool
	hand int
}

var (
	_ VictimSelector = (*ClockSelector)(nil)
	_ AccessObserver = (*ClockSelector)(nil)
)

func NewClockSelector() *ClockSelector {
	return &ClockSelector{ref: make(map[storage.PageID]bool)}
}

func (s *ClockSelector) Accessed(page *CachedPage, _ bool) {
	id := page.ID()
	if _, ok := s.ref[id]; !ok {
		s.ring = append(s.ring, id)
	}
	s.ref[id] = true
}

func (s *ClockSelector) Evicted(id storage.PageID) {
	if _, ok := s.ref[id]; !ok {
		return
	}
	delete(s.ref, id)
	for i, rid := range s.ring {
		if rid == id {
			s.ring = append(s.ring[:i], s.ring[i+1:]...)
			if s.hand > i {
				s.hand--
			}
			break
		}
	}
	if len(s.ring) > 0 {
		s.hand %= len(s.ring)
	} else {
		s.hand = 0
	}
}

func (s *ClockSelector) Pick(resident map[storage.PageID]*CachedPage) (storage.PageID, bool) {
	n := len(s.ring)
	// Up to 2 sweeps: one to clear ref bits, one to find the victim.
	for i := 0; i < 2*n; i++ {
		id := s.ring[s.hand]
		cp, ok := resident[id]
		if ok && cp.PinCount() == 0 {
			if !s.ref[id] {
				return id, true
			}
			// Second chance.
			s.ref[id] = false
		}
		s.hand = (s.hand + 1) % n
	}
	// Pages inserted by bulk load never pass through Accessed; cover them.
	return FirstUnpinned{}.Pick(resident)
}
