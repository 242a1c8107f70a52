package domain

import (
	"time"
)

const DefaultPlayerName = "Player"

type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Game struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Match struct {
	ID       string       `json:"id"`
	GameID   string       `json:"game_id"`
	GameName string       `json:"game_name"`
	PlayedAt time.Time    `json:"played_at"`
	Notes    string       `json:"notes,omitempty"`
	DaySeq   *int         `json:"day_seq"` // assigned by the backend on insert
	Scores   []MatchScore `json:"scores"`
}

// Winners returns the names of the winning participants in stored order.
func (m *Match) Winners() []string {
	var names []string
	for _, s := range m.Scores {
		if s.IsWinner {
			names = append(names, s.PlayerName)
		}
	}
	return names
}

type MatchScore struct {
	ID         string `json:"id"`
	MatchID    string `json:"match_id"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	IsWinner   bool   `json:"is_winner"`
	Points     int    `json:"points"` // 1 for winners, kept for older clients
}

// MatchResultRecord is one participant's outcome in one match, already
// joined with the player name and the match metadata.
type MatchResultRecord struct {
	MatchID    string
	PlayerID   string
	PlayerName string
	IsWinner   bool
	PlayedAt   time.Time
	GameID     string
}

type Participant struct {
	PlayerID string `json:"player_id"`
	IsWinner bool   `json:"is_winner"`
}

type NewMatch struct {
	GameID       string        `json:"game_id"`
	PlayedAt     time.Time     `json:"played_at"`
	Notes        string        `json:"notes"`
	Participants []Participant `json:"participants"`
}

type ListQuery struct {
	Search string
	Offset int
	Limit  int
}

type FeedQuery struct {
	GameID string
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

type FeedPage struct {
	Matches []Match
	Total   int
}

type PlayerPage struct {
	Players []Player
	Total   int
}

type GamePage struct {
	Games []Game
	Total int
}

// Epoch is the timestamp given to result records whose match time is
// missing or unparsable.
var Epoch = time.Unix(0, 0).UTC()

// PointsFor returns the compatibility points value stored with a score.
func PointsFor(isWinner bool) int {
	if isWinner {
		return 1
	}
	return 0
}
