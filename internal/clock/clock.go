// Package clock abstracts the time operations the watch loop depends on, so
// retry delays can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts time for testability. Production code injects Real();
// tests inject NewFake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the current goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Fake is a Clock whose Sleep returns immediately after advancing the
// fake time by d. Every sleep is recorded.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(time.Duration)
}

// NewFake returns a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep advances the fake time by d and records it.
func (f *Fake) Sleep(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	hook := f.onSleep
	f.mu.Unlock()

	if hook != nil {
		hook(d)
	}
}

// Sleeps returns every duration passed to Sleep, in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

// OnSleep registers a hook run after each Sleep, outside the lock.
func (f *Fake) OnSleep(hook func(time.Duration)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSleep = hook
}
