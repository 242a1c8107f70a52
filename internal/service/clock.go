package service

import (
	"time"

	"friends-scoreboard/internal/config"
)

// Clock returns the current time in the configured location.
type Clock func() time.Time

func NewClock(cfg *config.Config) Clock {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time { return time.Now().In(loc) }
}
