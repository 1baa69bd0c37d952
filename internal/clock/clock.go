package clock

import "time"

// Clock abstracts wall-clock time so expiry logic can be tested
// without sleeping.
type Clock interface {
	Now() time.Time
}

// System reads the real system time.
type System struct{}

// New returns a Clock backed by time.Now.
func New() *System {
	return &System{}
}

// Now returns the current system time.
func (*System) Now() time.Time {
	return time.Now()
}
