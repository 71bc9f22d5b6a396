package util

import "time"

// Clock is the sequencer's time source: After paces blocks, Now stamps them
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// BlockTime is c's current unix second, never earlier than prev. Block
// timestamps must not go backwards even if the wall clock does.
func BlockTime(c Clock, prev int64) int64 {
	ts := c.Now().Unix()
	if ts < prev {
		return prev
	}
	return ts
}
