package pagecache

import (
	"github.com/sirupsen/logrus"

	"github.com/hmngo/pagebuf/internal/storage"
)

// Unbounded disables the root cache's capacity bound.
const Unbounded = 0

// DefaultSubQuota is used when a sub-cache is created with quota <= 0.
var DefaultSubQuota = 16

// residency is the root's authority over the shared resident table. It is
// the only way a sub-cache may touch physical residency; sub-caches never
// reach into the table directly.
type residency interface {
	lookup(id storage.PageID) (*CachedPage, bool)
	materialize(id storage.PageID, owner scope) (*CachedPage, error)
	bulkLoad(startID storage.PageID, count int, owner scope) error
	evict(id storage.PageID) error
	writeBack(cp *CachedPage) error
	observe(cp *CachedPage, hit bool)
}

var (
	_ PageCache = (*Cache)(nil)
	_ residency = (*Cache)(nil)
	_ scope     = (*Cache)(nil)
)

// Cache is the root page cache. It owns the resident table, enforces the
// capacity bound and hosts the replacement policy. All operations assume one
// logical thread of control; callers serialize access externally.
type Cache struct {
	sm *storage.StorageManager
	fs storage.FileSet

	maxSize  int // Unbounded (0) or a positive page count
	resident map[storage.PageID]*CachedPage
	subs     []*SubCache

	selector VictimSelector
	observer AccessObserver
	stats    Stats
	log      logrus.FieldLogger
}

type Option func(*Cache)

// WithVictimSelector replaces the default FirstUnpinned policy.
func WithVictimSelector(sel VictimSelector) Option {
	return func(c *Cache) { c.selector = sel }
}

// WithAccessObserver sets an explicit lookup observer. Without one, a
// selector that also implements AccessObserver observes its own lookups.
func WithAccessObserver(obs AccessObserver) Option {
	return func(c *Cache) { c.observer = obs }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = log }
}

// New builds a root cache over the given storage. maxSize <= 0 means
// unbounded residency.
func New(sm *storage.StorageManager, fs storage.FileSet, maxSize int, opts ...Option) *Cache {
	if maxSize < 0 {
		maxSize = Unbounded
	}
	c := &Cache{
		sm:       sm,
		fs:       fs,
		maxSize:  maxSize,
		resident: make(map[storage.PageID]*CachedPage),
		selector: FirstUnpinned{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.observer == nil {
		if obs, ok := c.selector.(AccessObserver); ok {
			c.observer = obs
		}
	}
	return c
}

// Get returns the page without pinning it, recording a hit or miss.
func (c *Cache) Get(id storage.PageID) (*CachedPage, error) {
	return c.fetch(id, false)
}

// GetAndPin returns the page with its pin count incremented. The caller must
// call Release exactly once for every GetAndPin.
func (c *Cache) GetAndPin(id storage.PageID) (*CachedPage, error) {
	return c.fetch(id, true)
}

func (c *Cache) fetch(id storage.PageID, pin bool) (*CachedPage, error) {
	cp, hit := c.resident[id]
	if hit {
		c.stats.recordHit()
	} else {
		c.stats.recordMiss()
		var err error
		cp, err = c.materialize(id, c)
		if err != nil {
			return nil, err
		}
	}
	cp.recordAccess()
	c.observe(cp, hit)
	if pin {
		cp.pin++
	}
	return cp, nil
}

// Load bulk-materializes count pages starting at startID, skipping pages that
// are already resident. Loaded pages carry no pin and the hit/miss counters
// stay untouched.
func (c *Cache) Load(startID storage.PageID, count int) error {
	return c.bulkLoad(startID, count, c)
}

// CreateSubCache carves a bounded partition out of this cache. The sub-cache
// shares the resident table and storage but keeps its own quota and stats.
func (c *Cache) CreateSubCache(quota int) (PageCache, error) {
	if quota <= 0 {
		quota = DefaultSubQuota
	}
	sub := newSubCache(c, quota)
	c.subs = append(c.subs, sub)
	return sub, nil
}

// Flush writes every resident page back to storage. Pages stay resident and
// keep their dirty flag; repeated flushes are idempotent.
func (c *Cache) Flush() error {
	for _, cp := range c.resident {
		if err := c.sm.WritePage(c.fs, cp.page); err != nil {
			return err
		}
	}
	c.log.WithField("pages", len(c.resident)).Debug("cache flushed")
	return nil
}

func (c *Cache) Stats() Stats { return c.stats }

// Size reports the number of resident pages.
func (c *Cache) Size() int { return len(c.resident) }

func (c *Cache) MaxSize() int { return c.maxSize }

func (c *Cache) Contains(id storage.PageID) bool {
	_, ok := c.resident[id]
	return ok
}

// ---- scope (the root owning its own pages) ----

func (c *Cache) reserve() error {
	if c.maxSize == Unbounded {
		return nil
	}
	for len(c.resident) >= c.maxSize {
		if err := c.evictOne(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) adopted(storage.PageID) {}

// ---- residency (shared with sub-caches) ----

func (c *Cache) lookup(id storage.PageID) (*CachedPage, bool) {
	cp, ok := c.resident[id]
	return cp, ok
}

// materialize reads the page from storage and inserts it into the resident
// table under the owning scope, making room first when a bound is hit.
func (c *Cache) materialize(id storage.PageID, owner scope) (*CachedPage, error) {
	p, err := c.sm.ReadPage(c.fs, id)
	if err != nil {
		return nil, err
	}
	return c.insert(p, owner)
}

func (c *Cache) bulkLoad(startID storage.PageID, count int, owner scope) error {
	return c.sm.BulkRead(c.fs, startID, count, func(p *storage.Page) error {
		if _, ok := c.resident[p.ID()]; ok {
			return nil
		}
		_, err := c.insert(p, owner)
		return err
	})
}

func (c *Cache) insert(p *storage.Page, owner scope) (*CachedPage, error) {
	// The owner frees one of its own slots first, then the root bound is
	// enforced; for root-owned pages the second check is a no-op.
	if err := owner.reserve(); err != nil {
		return nil, err
	}
	if err := c.reserve(); err != nil {
		return nil, err
	}
	cp := newCachedPage(p, owner)
	c.resident[p.ID()] = cp
	owner.adopted(p.ID())
	return cp, nil
}

func (c *Cache) evictOne() error {
	victim, ok := c.selector.Pick(c.resident)
	if !ok {
		return ErrCacheExhausted
	}
	return c.evict(victim)
}

// evict writes the page's current content back to storage and removes it from
// the resident table and from every sub-cache membership. Pinned pages are
// never passed in here.
func (c *Cache) evict(id storage.PageID) error {
	cp, ok := c.resident[id]
	if !ok {
		return nil
	}
	if err := c.sm.WritePage(c.fs, cp.page); err != nil {
		return err
	}
	delete(c.resident, id)
	for _, sub := range c.subs {
		sub.forget(id)
	}
	if c.observer != nil {
		c.observer.Evicted(id)
	}
	c.log.WithFields(logrus.Fields{
		"page":  id,
		"dirty": cp.dirty,
	}).Debug("page evicted")
	return nil
}

func (c *Cache) writeBack(cp *CachedPage) error {
	return c.sm.WritePage(c.fs, cp.page)
}

func (c *Cache) observe(cp *CachedPage, hit bool) {
	if c.observer != nil {
		c.observer.Accessed(cp, hit)
	}
}
