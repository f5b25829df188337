package child

import "time"

// Clock abstracts wall-clock reads so lifecycle tests can control the
// passage of time instead of sleeping in real time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the production Clock backed by time.Now.
func RealClock() Clock { return realClock{} }
