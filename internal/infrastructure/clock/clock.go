package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the subset of the time package the gateway schedules with.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once, after d has elapsed, and returns a handle
	// that can cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending call.
type Timer interface {
	// Stop prevents the call from firing. It returns false if the call
	// already fired or was already stopped.
	Stop() bool
}

// Real returns a Clock backed by the system clock.
func Real() Clock { return Wrap(clockwork.NewRealClock()) }

// Wrap adapts a clockwork clock. Callbacks run on their own goroutine, as
// with time.AfterFunc.
func Wrap(c clockwork.Clock) Clock { return clockworkClock{c} }

type clockworkClock struct {
	c clockwork.Clock
}

func (w clockworkClock) Now() time.Time { return w.c.Now() }

func (w clockworkClock) AfterFunc(d time.Duration, f func()) Timer {
	return w.c.AfterFunc(d, f)
}
