package readiness

import "time"

// Clock is the time source of the gate. Production code uses RealClock;
// tests inject a fake that advances instantly.
type Clock interface {
	Now() time.Time
	// After behaves like time.After
	After(d time.Duration) <-chan time.Time
}

// RealClock returns a Clock backed by the time package
func RealClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
