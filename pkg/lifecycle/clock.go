package lifecycle

import "time"

// Clock supplies the current instant. Rules never read the wall clock directly.
type Clock func() time.Time

// SystemClock returns time.Now.
func SystemClock() Clock {
	return time.Now
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
