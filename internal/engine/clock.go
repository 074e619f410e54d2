package engine

import (
	"sync/atomic"
	"time"
)

// Clock supplies wall time and timers. Tests substitute a fake clock so
// the debounce window can be driven deterministically.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine after d and returns a
	// function that cancels the call. stop reports whether it prevented f.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// generation is a monotonic counter identifying auto-sync schedules.
//
// Every restart or cancellation of auto-sync advances it. A timer or
// request carries the generation it was created under and may only mutate
// the store or notify while that generation is still current.
type generation struct {
	seq atomic.Int64
}

// Next advances and returns the new generation.
func (g *generation) Next() int64 {
	return g.seq.Add(1)
}

// Current returns the latest generation.
func (g *generation) Current() int64 {
	return g.seq.Load()
}
