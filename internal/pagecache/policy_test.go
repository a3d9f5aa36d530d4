package pagecache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hmngo/pagebuf/internal/storage"
)

func policyPage(t *testing.T, id storage.PageID, pins int) *CachedPage {
	t.Helper()

	p, err := storage.NewPage(make([]byte, storage.PageSize), id)
	require.NoError(t, err)
	cp := newCachedPage(p, nil)
	cp.pin = pins
	return cp
}

func TestFirstUnpinned_PicksLowestUnpinnedID(t *testing.T) {
	resident := map[storage.PageID]*CachedPage{
		1: policyPage(t, 1, 1),
		2: policyPage(t, 2, 0),
		3: policyPage(t, 3, 0),
	}

	victim, ok := FirstUnpinned{}.Pick(resident)
	require.True(t, ok)
	require.Equal(t, storage.PageID(2), victim)
}

func TestFirstUnpinned_AllPinned(t *testing.T) {
	resident := map[storage.PageID]*CachedPage{
		1: policyPage(t, 1, 2),
		2: policyPage(t, 2, 1),
	}

	_, ok := FirstUnpinned{}.Pick(resident)
	require.False(t, ok)
}

func TestLRUSelector_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _, _ := newTestCache(t, 3, WithVictimSelector(NewLRUSelector(3)))

	for id := storage.PageID(0); id < 3; id++ {
		_, err := c.Get(id)
		require.NoError(t, err)
	}

	// Refresh page 0 so page 1 becomes the coldest.
	_, err := c.Get(0)
	require.NoError(t, err)

	_, err = c.Get(3)
	require.NoError(t, err)
	require.True(t, c.Contains(0))
	require.False(t, c.Contains(1))
	require.True(t, c.Contains(2))
	require.True(t, c.Contains(3))
}

func TestLRUSelector_SkipsPinned(t *testing.T) {
	c, _, _ := newTestCache(t, 2, WithVictimSelector(NewLRUSelector(2)))

	pinned, err := c.GetAndPin(0)
	require.NoError(t, err)

	_, err = c.Get(1)
	require.NoError(t, err)

	// 0 is older but pinned; the LRU sweep moves on to 1.
	_, err = c.Get(2)
	require.NoError(t, err)
	require.True(t, c.Contains(0))
	require.False(t, c.Contains(1))
	require.Equal(t, 1, pinned.PinCount())
}

func TestLFUSelector_EvictsLeastFrequentlyUsed(t *testing.T) {
	c, _, _ := newTestCache(t, 3, WithVictimSelector(LFUSelector{}))

	for i := 0; i < 3; i++ {
		_, err := c.Get(0)
		require.NoError(t, err)
	}
	_, err := c.Get(1)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := c.Get(2)
		require.NoError(t, err)
	}

	// Page 1 has the lowest access count.
	_, err = c.Get(3)
	require.NoError(t, err)
	require.True(t, c.Contains(0))
	require.False(t, c.Contains(1))
	require.True(t, c.Contains(2))
}

func TestClockSelector_SecondChanceSweep(t *testing.T) {
	s := NewClockSelector()
	resident := map[storage.PageID]*CachedPage{
		1: policyPage(t, 1, 0),
		2: policyPage(t, 2, 0),
		3: policyPage(t, 3, 0),
	}
	for _, id := range []storage.PageID{1, 2, 3} {
		s.Accessed(resident[id], false)
	}

	// Every ref bit is set: the first sweep clears them, the second finds
	// the first candidate in ring order.
	victim, ok := s.Pick(resident)
	require.True(t, ok)
	require.Equal(t, storage.PageID(1), victim)

	s.Evicted(1)
	delete(resident, 1)

	victim, ok = s.Pick(resident)
	require.True(t, ok)
	require.Equal(t, storage.PageID(2), victim)
}

func TestClockSelector_UntrackedPagesFallBack(t *testing.T) {
	s := NewClockSelector()
	resident := map[storage.PageID]*CachedPage{
		4: policyPage(t, 4, 0),
	}

	// Page 4 was bulk-loaded and never passed through Accessed.
	victim, ok := s.Pick(resident)
	require.True(t, ok)
	require.Equal(t, storage.PageID(4), victim)
}

func TestCache_CustomObserverSeesLookupsAndEvictions(t *testing.T) {
	obs := &recordingObserver{}
	c, _, _ := newTestCache(t, 1, WithAccessObserver(obs))

	_, err := c.Get(0)
	require.NoError(t, err)
	_, err = c.Get(0)
	require.NoError(t, err)
	_, err = c.Get(1)
	require.NoError(t, err)

	require.Equal(t, []bool{false, true, false}, obs.hits)
	require.Equal(t, []storage.PageID{0}, obs.evicted)
}

type recordingObserver struct {
	hits    []bool
	evicted []storage.PageID
}

func (o *recordingObserver) Accessed(_ *CachedPage, hit bool) {
	o.hits = append(o.hits, hit)
}

func (o *recordingObserver) Evicted(id storage.PageID) {
	o.evicted = append(o.evicted, id)
}
