// Package clock abstracts the current time so services that enforce
// time-window rules (past-slot checks, cancellation cutoffs) can be tested
// against a fixed instant.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a Clock backed by time.Now, normalized to UTC.
func System() Clock { return systemClock{} }

// Fixed is a Clock pinned to a single instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// At returns a Fixed clock at t.
func At(t time.Time) Fixed { return Fixed{T: t} }
