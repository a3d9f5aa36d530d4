package pagecache

import "errors"

var (
	// ErrCacheExhausted means a victim was needed but every resident page is
	// pinned. The cache is undersized for the caller's peak pinned working
	// set; retrying cannot help.
	ErrCacheExhausted = errors.New("pagecache: no unpinned page available for eviction")

	// ErrNestedSubCache means CreateSubCache was called on a sub-cache.
	// Only one level of partitioning from the root is permitted.
	ErrNestedSubCache = errors.New("pagecache: sub-caches cannot be partitioned further")
)
