// Package leaderboard turns a feed of per-player match results into ranked
// standings. Everything here is pure: no I/O, no shared state between calls.
package leaderboard

import (
	"sort"
	"strconv"
	"time"

	"friends-scoreboard/internal/domain"
)

// NoStreak is the streak label of a player without results.
const NoStreak = "—"

type Filter struct {
	Window Window
	GameID string
}

// Match reports whether a record passes the window and game filters.
func (f Filter) Match(r domain.MatchResultRecord) bool {
	if !f.Window.Contains(playedAt(r)) {
		return false
	}
	return f.GameID == "" || r.GameID == f.GameID
}

type RankedRow struct {
	PlayerID    string    `json:"player_id"`
	PlayerName  string    `json:"player_name"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	GamesPlayed int       `json:"games"`
	WinRate     float64   `json:"win_rate"`
	LastPlayed  time.Time `json:"last_played"`
	Streak      string    `json:"streak"`
	TotalPoints int       `json:"total_points"`
	Rank        int       `json:"rank"`
}

type Summary struct {
	Matches int `json:"matches"`
	Players int `json:"players"`
	Wins    int `json:"wins"`
}

type Standings struct {
	Rows    []RankedRow `json:"rows"`
	Summary Summary     `json:"summary"`
}

type result struct {
	at  time.Time
	won bool
}

type playerAggregate struct {
	name       string
	wins       int
	games      int
	results    []result
	lastPlayed time.Time
}

// Aggregate filters the feed, groups it by player and returns the players
// sorted by wins desc, win rate desc, games played asc, with dense ranks
// assigned on wins alone. Players with identical keys keep the order in
// which they first appear in the feed.
func Aggregate(records []domain.MatchResultRecord, f Filter) Standings {
	filtered := make([]domain.MatchResultRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			filtered = append(filtered, r)
		}
	}

	rows := rank(group(filtered))
	return Standings{Rows: rows, Summary: summarize(filtered)}
}

func group(records []domain.MatchResultRecord) []RankedRow {
	acc := make(map[string]*playerAggregate)
	var order []string

	for _, r := range records {
		a, ok := acc[r.PlayerID]
		if !ok {
			a = &playerAggregate{}
			acc[r.PlayerID] = a
			order = append(order, r.PlayerID)
		}
		at := playedAt(r)
		a.games++
		if r.IsWinner {
			a.wins++
		}
		a.results = append(a.results, result{at: at, won: r.IsWinner})
		if at.After(a.lastPlayed) || len(a.results) == 1 {
			a.lastPlayed = at
		}
		if r.PlayerName != "" {
			a.name = r.PlayerName
		}
	}

	rows := make([]RankedRow, 0, len(order))
	for _, id := range order {
		a := acc[id]
		name := a.name
		if name == "" {
			name = domain.DefaultPlayerName
		}
		var winRate float64
		if a.games > 0 {
			winRate = float64(a.wins) / float64(a.games)
		}
		rows = append(rows, RankedRow{
			PlayerID:    id,
			PlayerName:  name,
			Wins:        a.wins,
			Losses:      a.games - a.wins,
			GamesPlayed: a.games,
			WinRate:     winRate,
			LastPlayed:  a.lastPlayed,
			Streak:      streak(a.results),
			TotalPoints: a.wins,
		})
	}
	return rows
}

// streak labels the run of identical outcomes that ends with the player's
// most recent result.
func streak(results []result) string {
	if len(results) == 0 {
		return NoStreak
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].at.Before(results[j].at)
	})

	last := results[len(results)-1].won
	n := 0
	for i := len(results) - 1; i >= 0 && results[i].won == last; i-- {
		n++
	}
	if last {
		return "W" + strconv.Itoa(n)
	}
	return "L" + strconv.Itoa(n)
}

func rank(rows []RankedRow) []RankedRow {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		return a.GamesPlayed < b.GamesPlayed
	})

	currentRank := 0
	lastWins := -1
	for i := range rows {
		if i == 0 || rows[i].Wins != lastWins {
			currentRank++
			lastWins = rows[i].Wins
		}
		rows[i].Rank = currentRank
	}
	return rows
}

func summarize(records []domain.MatchResultRecord) Summary {
	matches := make(map[string]struct{})
	players := make(map[string]struct{})
	var s Summary
	for _, r := range records {
		matches[r.MatchID] = struct{}{}
		players[r.PlayerID] = struct{}{}
		if r.IsWinner {
			s.Wins++
		}
	}
	s.Matches = len(matches)
	s.Players = len(players)
	return s
}

func playedAt(r domain.MatchResultRecord) time.Time {
	if r.PlayedAt.IsZero() {
		return domain.Epoch
	}
	return r.PlayedAt
}
