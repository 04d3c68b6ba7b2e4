package engine

import "time"

// Clock supplies the current time to transition preconditions.
// This interface enables dependency injection for deterministic testing.
type Clock interface {
	Now() time.Time
}

// systemClock wraps the wall clock for production use.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// defaultClock is used when no clock is injected.
var defaultClock Clock = systemClock{}
