package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps ingested records.
//
// Seq values give records a total ingest order that does not depend on
// wall time, so two records with the same timestamp still sort the same way
// on every read.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though only the Run loop advances it.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
// Used to resume after the highest seq already stored.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
