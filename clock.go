package quiccore

import "time"

// Clock abstracts wall-clock reads so tests can drive a session's timers
// deterministically instead of racing the real clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultClock is the production Clock.
var DefaultClock Clock = realClock{}
