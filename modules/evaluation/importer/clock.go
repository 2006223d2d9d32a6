package importer

import "time"

// Clock abstracts the current time so vote windows derived from "now" stay
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// FixedClock always returns the given instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
