package pagecache

import "github.com/hmngo/pagebuf/internal/storage"

// PageCache is the contract shared by the root cache and its sub-caches.
// Handles returned by Get and Load carry no pin and releasing them is a safe
// no-op; every GetAndPin must be paired with exactly one Release.
type PageCache interface {
	Load(startID storage.PageID, count int) error
	Get(id storage.PageID) (*CachedPage, error)
	GetAndPin(id storage.PageID) (*CachedPage, error)
	CreateSubCache(quota int) (PageCache, error)
	Flush() error
	Stats() Stats
}
