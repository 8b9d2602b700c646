package usecase

import "time"

// Clock abstracts time for the countdown and expiry logic so tests can drive
// state transitions without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock used outside tests.
var SystemClock Clock = systemClock{}
