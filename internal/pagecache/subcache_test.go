package pagecache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hmngo/pagebuf/internal/storage"
)

func newTestSubCache(t *testing.T, root *Cache, quota int) *SubCache {
	t.Helper()

	pc, err := root.CreateSubCache(quota)
	require.NoError(t, err)
	sub, ok := pc.(*SubCache)
	require.True(t, ok)
	return sub
}

func TestSubCache_LocalMissDespiteGlobalResidency(t *testing.T) {
	c, _, _ := newTestCache(t, Unbounded)
	s1 := newTestSubCache(t, c, 4)
	s2 := newTestSubCache(t, c, 4)

	// First access from s1: local miss, page materialized.
	_, err := s1.Get(0)
	require.NoError(t, err)
	require.Equal(t, Stats{Hits: 0, Misses: 1}, s1.Stats())

	// s2 sees the globally resident page, but its own first access is still
	// a local miss.
	_, err = s2.Get(0)
	require.NoError(t, err)
	require.Equal(t, Stats{Hits: 0, Misses: 1}, s2.Stats())
	require.Equal(t, 1, c.Size())

	// Second accesses are local hits.
	_, err = s1.Get(0)
	require.NoError(t, err)
	require.Equal(t, Stats{Hits: 1, Misses: 1}, s1.Stats())

	_, err = s2.Get(0)
	require.NoError(t, err)
	require.Equal(t, Stats{Hits: 1, Misses: 1}, s2.Stats())

	// Sub-cache traffic does not move the root's own counters.
	require.Equal(t, Stats{}, c.Stats())
}

func TestSubCache_QuotaEvictsOldestInserted(t *testing.T) {
	c, _, _ := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 2)

	_, err := s.Get(10)
	require.NoError(t, err)
	_, err = s.Get(11)
	require.NoError(t, err)
	require.Equal(t, 2, s.Size())

	// Third member pushes out the oldest insertion (10), even though 10 was
	// accessed most recently by nobody else.
	_, err = s.Get(12)
	require.NoError(t, err)
	require.Equal(t, 2, s.Size())
	require.False(t, s.Contains(10))
	require.True(t, s.Contains(11))
	require.True(t, s.Contains(12))

	// Physical eviction happened at the root too.
	require.False(t, c.Contains(10))
	require.True(t, c.Contains(11))
}

func TestSubCache_FIFOSkipsPinnedMembers(t *testing.T) {
	c, _, _ := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 2)

	pinned, err := s.GetAndPin(0)
	require.NoError(t, err)
	require.Equal(t, 1, pinned.PinCount())

	_, err = s.Get(1)
	require.NoError(t, err)

	// 0 is oldest but pinned; FIFO falls through to 1.
	_, err = s.Get(2)
	require.NoError(t, err)
	require.True(t, s.Contains(0))
	require.False(t, s.Contains(1))
	require.True(t, s.Contains(2))
}

func TestSubCache_AllMembersPinned_Exhausted(t *testing.T) {
	c, _, _ := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 1)

	_, err := s.GetAndPin(0)
	require.NoError(t, err)

	_, err = s.Get(1)
	require.ErrorIs(t, err, ErrCacheExhausted)
}

func TestSubCache_NestedCreateIsRejected(t *testing.T) {
	c, _, _ := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 2)

	_, err := s.CreateSubCache(1)
	require.ErrorIs(t, err, ErrNestedSubCache)
}

func TestSubCache_LoadRegistersMembership(t *testing.T) {
	c, _, _ := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 4)

	require.NoError(t, s.Load(0, 3))
	require.Equal(t, 3, s.Size())
	require.Equal(t, 3, c.Size())
	for id := storage.PageID(0); id < 3; id++ {
		require.True(t, s.Contains(id))
	}

	// Bulk load stays out of the hit/miss accounting, local and root alike.
	require.Equal(t, Stats{}, s.Stats())
	require.Equal(t, Stats{}, c.Stats())
}

func TestSubCache_LoadHonorsQuota(t *testing.T) {
	c, _, _ := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 2)

	require.NoError(t, s.Load(0, 3))
	require.Equal(t, 2, s.Size())
	require.False(t, s.Contains(0))
	require.True(t, s.Contains(1))
	require.True(t, s.Contains(2))
	require.Equal(t, 2, c.Size())
}

func TestSubCache_FlushWritesOnlyMembers(t *testing.T) {
	c, sm, fs := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 4)

	rootPage, err := c.Get(0)
	require.NoError(t, err)
	require.NoError(t, rootPage.PutRecord([]byte("root only"), 0))

	memberPage, err := s.Get(1)
	require.NoError(t, err)
	require.NoError(t, memberPage.PutRecord([]byte("member"), 0))

	require.NoError(t, s.Flush())

	// The member's content reached storage.
	reloaded, err := sm.ReadPage(fs, 1)
	require.NoError(t, err)
	rec, err := reloaded.ReadRecord(0)
	require.NoError(t, err)
	require.Equal(t, []byte("member"), rec)

	// The root-only page was not written; its sparse on-disk image is empty.
	reloaded, err = sm.ReadPage(fs, 0)
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.NumRecords())

	// Members stay resident.
	require.True(t, c.Contains(1))
	require.True(t, s.Contains(1))
}

func TestSubCache_RootEvictionStripsMembership(t *testing.T) {
	c, _, _ := newTestCache(t, 2)
	s := newTestSubCache(t, c, 4)

	_, err := s.Get(0)
	require.NoError(t, err)
	_, err = s.Get(1)
	require.NoError(t, err)

	// The root bound, not the quota, forces page 0 out; the membership set
	// must shrink with it so it stays a subset of the resident keys.
	_, err = s.Get(2)
	require.NoError(t, err)
	require.Equal(t, 2, c.Size())
	require.Equal(t, 2, s.Size())
	require.False(t, s.Contains(0))
	require.False(t, c.Contains(0))
}

func TestSubCache_ReleaseEvictsAndStripsMembership(t *testing.T) {
	c, sm, fs := newTestCache(t, Unbounded)
	s := newTestSubCache(t, c, 4)

	p, err := s.GetAndPin(5)
	require.NoError(t, err)
	require.NoError(t, p.PutRecord([]byte("pinned once"), 0))

	require.NoError(t, p.Release())
	require.False(t, c.Contains(5))
	require.False(t, s.Contains(5))
	require.Equal(t, 0, s.Size())

	reloaded, err := sm.ReadPage(fs, 5)
	require.NoError(t, err)
	rec, err := reloaded.ReadRecord(0)
	require.NoError(t, err)
	require.Equal(t, []byte("pinned once"), rec)
}

func TestSubCache_MembershipAlwaysSubsetOfResident(t *testing.T) {
	c, _, _ := newTestCache(t, 3)
	s1 := newTestSubCache(t, c, 2)
	s2 := newTestSubCache(t, c, 2)

	var steps = []func() error{
		func() error { _, err := s1.Get(0); return err },
		func() error { _, err := s2.Get(0); return err },
		func() error { _, err := s1.Get(1); return err },
		func() error { _, err := s2.Get(2); return err },
		func() error { _, err := s1.Get(3); return err },
		func() error { return s1.Flush() },
		func() error { _, err := s2.Get(4); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		for _, sub := range []*SubCache{s1, s2} {
			for _, id := range sub.order {
				require.True(t, c.Contains(id), "step %d: member %d not resident", i, id)
			}
		}
	}
}
