package pagecache

// Stats accumulates hit/miss counters for one cache scope. Counters only ever
// grow; bulk loads deliberately bypass them so prefetch misses do not skew
// the hit ratio.
type Stats struct {
	Hits   uint64
	Misses uint64
}

func (s *Stats) recordHit()  { s.Hits++ }
func (s *Stats) recordMiss() { s.Misses++ }

func (s Stats) Requests() uint64 {
	return s.Hits + s.Misses
}

func (s Stats) HitRatio() float64 {
	total := s.Requests()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
