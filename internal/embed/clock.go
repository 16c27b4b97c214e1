package embed

import "time"

// Clock schedules one-shot callbacks.
type Clock interface {
	AfterFunc(d time.Duration, fn func())
}

// RealClock uses the runtime timer.
type RealClock struct{}

func (RealClock) AfterFunc(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
