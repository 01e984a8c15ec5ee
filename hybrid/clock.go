package hybrid

import "time"

// Clock abstracts wall-clock access so maintenance timing and access
// frequency are deterministically testable (spec §9 design note on
// "Global wall-clock access").
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
