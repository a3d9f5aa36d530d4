package pagecache

import (
	"time"

	"github.com/hmngo/pagebuf/internal/storage"
)

// scope is a cache partition (the root or one sub-cache) that can own a
// resident page's quota slot.
type scope interface {
	// reserve makes room for one incoming page under the scope's bound,
	// evicting if necessary.
	reserve() error
	// adopted records a freshly inserted page as belonging to the scope.
	adopted(id storage.PageID)
	// evict writes the page back and removes it from residency.
	evict(id storage.PageID) error
}

// CachedPage wraps one raw page while it is resident in memory. It tracks the
// pin count, the dirty flag and usage metadata, and forwards record mutations
// to the underlying page.
//
// The owner reference points at the scope whose quota slot the page occupies;
// it is only used to request the page's own eviction, never the other way
// around.
type CachedPage struct {
	page  *storage.Page
	owner scope

	pin   int
	dirty bool

	accessCount uint64
	lastAccess  time.Time
}

func newCachedPage(p *storage.Page, owner scope) *CachedPage {
	return &CachedPage{page: p, owner: owner}
}

func (cp *CachedPage) ID() storage.PageID { return cp.page.ID() }

// Page exposes the wrapped raw page for read access.
func (cp *CachedPage) Page() *storage.Page { return cp.page }

func (cp *CachedPage) PinCount() int { return cp.pin }

func (cp *CachedPage) IsDirty() bool { return cp.dirty }

// Usage returns the access counters maintained for replacement policies.
func (cp *CachedPage) Usage() (accessCount uint64, lastAccess time.Time) {
	return cp.accessCount, cp.lastAccess
}

// PutRecord forwards to the raw page and marks the page dirty.
func (cp *CachedPage) PutRecord(rec []byte, recID int) error {
	cp.dirty = true
	return cp.page.PutRecord(rec, recID)
}

// DeleteRecord forwards to the raw page and marks the page dirty.
func (cp *CachedPage) DeleteRecord(recID int) error {
	cp.dirty = true
	return cp.page.DeleteRecord(recID)
}

// Release drops one pin. When the last pin is released the page is
// immediately evicted through its owning scope (write-back + removal).
// Releasing an unpinned page is a no-op, which makes double release safe.
func (cp *CachedPage) Release() error {
	if cp.pin == 0 {
		return nil
	}
	cp.pin--
	if cp.pin == 0 {
		return cp.owner.evict(cp.ID())
	}
	return nil
}

// recordAccess bumps the usage counters. Called on every lookup, hit or miss,
// so replacement policies always see fresh metadata.
func (cp *CachedPage) recordAccess() {
	cp.accessCount++
	cp.lastAccess = time.Now()
}
