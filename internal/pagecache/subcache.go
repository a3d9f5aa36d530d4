package pagecache

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/hmngo/pagebuf/internal/storage"
)

var (
	_ PageCache = (*SubCache)(nil)
	_ scope     = (*SubCache)(nil)
)

// SubCache is a bounded, independently measured partition of one root cache.
// Physical residency stays with the root; the sub-cache only tracks which
// pages occupy its quota slots, in insertion order, plus its own hit/miss
// counters. Local hits are membership hits: the first access from this
// sub-cache is a miss even when the page is already resident via another
// scope.
type SubCache struct {
	root  residency
	quota int

	members mapset.Set[storage.PageID]
	order   []storage.PageID // insertion order, oldest first
	stats   Stats
}

func newSubCache(root residency, quota int) *SubCache {
	return &SubCache{
		root:    root,
		quota:   quota,
		members: mapset.NewThreadUnsafeSet[storage.PageID](),
	}
}

func (s *SubCache) Get(id storage.PageID) (*CachedPage, error) {
	return s.fetch(id, false)
}

func (s *SubCache) GetAndPin(id storage.PageID) (*CachedPage, error) {
	return s.fetch(id, true)
}

func (s *SubCache) fetch(id storage.PageID, pin bool) (*CachedPage, error) {
	member := s.members.Contains(id)
	if member {
		s.stats.recordHit()
	} else {
		s.stats.recordMiss()
	}

	cp, resident := s.root.lookup(id)
	if !resident {
		// Materializing through the root routes the insert through this
		// sub-cache's bounded insert path (reserve + adopted).
		var err error
		cp, err = s.root.materialize(id, s)
		if err != nil {
			return nil, err
		}
	} else if !member {
		// Globally resident but new to this sub-cache: claim a quota slot.
		if err := s.reserve(); err != nil {
			return nil, err
		}
		s.adopted(id)
	}

	cp.recordAccess()
	s.root.observe(cp, resident)
	if pin {
		cp.pin++
	}
	return cp, nil
}

// Load bulk-materializes through the root and registers every inserted page
// as a member of this sub-cache.
func (s *SubCache) Load(startID storage.PageID, count int) error {
	return s.root.bulkLoad(startID, count, s)
}

// CreateSubCache is unsupported: only one level of partitioning from the root
// is permitted.
func (s *SubCache) CreateSubCache(int) (PageCache, error) {
	return nil, ErrNestedSubCache
}

// Flush writes back only the pages currently owned by this sub-cache's
// membership. Like the root's Flush it neither evicts nor clears dirty flags.
func (s *SubCache) Flush() error {
	for _, id := range s.order {
		cp, ok := s.root.lookup(id)
		if !ok {
			continue
		}
		if err := s.root.writeBack(cp); err != nil {
			return err
		}
	}
	return nil
}

func (s *SubCache) Stats() Stats { return s.stats }

// Size reports the number of member pages.
func (s *SubCache) Size() int { return len(s.order) }

func (s *SubCache) Quota() int { return s.quota }

func (s *SubCache) Contains(id storage.PageID) bool {
	return s.members.Contains(id)
}

// ---- scope ----

func (s *SubCache) reserve() error {
	for len(s.order) >= s.quota {
		if err := s.evictOldest(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SubCache) adopted(id storage.PageID) {
	if s.members.Contains(id) {
		return
	}
	s.members.Add(id)
	s.order = append(s.order, id)
}

func (s *SubCache) evict(id storage.PageID) error {
	return s.root.evict(id)
}

// evictOldest picks the oldest-inserted unpinned member (strict FIFO, unlike
// the root's default policy) and asks the root to physically evict it. The
// root's eviction strips the membership via forget.
func (s *SubCache) evictOldest() error {
	for _, id := range s.order {
		cp, ok := s.root.lookup(id)
		if !ok {
			// Membership drifted from residency; drop the stale entry.
			s.forget(id)
			return nil
		}
		if cp.PinCount() > 0 {
			continue
		}
		return s.root.evict(id)
	}
	return ErrCacheExhausted
}

// forget removes id from this sub-cache's membership. Called by the root
// whenever it evicts a page, whoever requested the eviction.
func (s *SubCache) forget(id storage.PageID) {
	if !s.members.Contains(id) {
		return
	}
	s.members.Remove(id)
	for i, mid := range s.order {
		if mid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
