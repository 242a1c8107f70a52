package events

import "time"

// MatchRecorded is emitted after a match and its scores were stored.
type MatchRecorded struct {
	MatchID  string
	GameID   string
	PlayedAt time.Time
	DaySeq   *int
	Players  []string
	Winners  []string
}

// TablesChanged signals that rows were inserted into a backend table,
// either by this process or by another client of the same backend.
type TablesChanged struct {
	Table  string
	Source string
}
