package rexcache

// Statistics is an immutable snapshot of the cache's counters, with the
// derived ratios computed from the snapshot rather than re-read from live
// state, so a caller's arithmetic is internally consistent.
type Statistics struct {
	Hits                         uint64
	Misses                       uint64
	EvictionsLRU                 uint64
	EvictionsIdle                uint64
	EvictionsDeferred            uint64
	CurrentSize                  int
	MaxSize                      int
	DeferredSize                 int64
	NativeMemoryBytes            int64
	PeakNativeMemoryBytes        int64
	InvalidPatternRecompilations uint64
}

// HitRate is Hits / TotalRequests, or 0 if there have been no requests.
func (s Statistics) HitRate() float64 {
	total := s.TotalRequests()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MissRate is Misses / TotalRequests, or 0 if there have been no requests.
func (s Statistics) MissRate() float64 {
	total := s.TotalRequests()
	if total == 0 {
		return 0
	}
	return float64(s.Misses) / float64(total)
}

// Utilization is CurrentSize / MaxSize, or 0 if MaxSize is 0.
func (s Statistics) Utilization() float64 {
	if s.MaxSize == 0 {
		return 0
	}
	return float64(s.CurrentSize) / float64(s.MaxSize)
}

// TotalEvictions sums all three eviction reasons.
func (s Statistics) TotalEvictions() uint64 {
	return s.EvictionsLRU + s.EvictionsIdle + s.EvictionsDeferred
}

// TotalRequests is Hits + Misses.
func (s Statistics) TotalRequests() uint64 {
	return s.Hits + s.Misses
}
