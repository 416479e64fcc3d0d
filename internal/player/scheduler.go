package player

import "time"

// Timer is a pending single-shot callback
type Timer interface {
	Stop() bool
}

// Scheduler is the engine's only source of time
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemScheduler runs callbacks on the runtime timer goroutines
type SystemScheduler struct{}

func (SystemScheduler) Now() time.Time {
	return time.Now()
}

func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
