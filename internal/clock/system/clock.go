// Package system provides the wall-clock implementation of pricing.Clock.
package system

import "time"

// Clock returns the real current time.
type Clock struct{}

// New returns a system Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
