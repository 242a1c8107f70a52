package api

import (
	"friends-scoreboard/internal/domain"
)

type nameRow struct {
	Name string `json:"name"`
}

type namedRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type matchRefRow struct {
	PlayedAt string `json:"played_at"`
	GameID   string `json:"game_id"`
}

// resultRow is one match_scores row with its player and match embedded.
type resultRow struct {
	MatchID  string                        `json:"match_id"`
	PlayerID string                        `json:"player_id"`
	IsWinner bool                          `json:"is_winner"`
	Players  domain.OneOrMany[nameRow]     `json:"players"`
	Matches  domain.OneOrMany[matchRefRow] `json:"matches"`
}

type scoreRow struct {
	ID       string                    `json:"id"`
	MatchID  string                    `json:"match_id"`
	PlayerID string                    `json:"player_id"`
	IsWinner bool                      `json:"is_winner"`
	Points   int                       `json:"points"`
	Players  domain.OneOrMany[nameRow] `json:"players"`
}

type matchRow struct {
	ID          string                     `json:"id"`
	GameID      string                     `json:"game_id"`
	PlayedAt    string                     `json:"played_at"`
	Notes       *string                    `json:"notes"`
	DaySeq      *int                       `json:"day_seq"`
	Games       domain.OneOrMany[nameRow]  `json:"games"`
	MatchScores domain.OneOrMany[scoreRow] `json:"match_scores"`
}

type idRow struct {
	ID string `json:"id"`
}

type matchInsert struct {
	ID       string `json:"id"`
	GameID   string `json:"game_id"`
	PlayedAt string `json:"played_at"`
	Notes    string `json:"notes"`
}

type scoreInsert struct {
	ID       string `json:"id"`
	MatchID  string `json:"match_id"`
	PlayerID string `json:"player_id"`
	IsWinner bool   `json:"is_winner"`
	Points   int    `json:"points"`
}

type nameInsert struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const (
	resultSelect = "match_id,player_id,is_winner,players(name),matches!inner(played_at,game_id)"
	matchSelect  = "id,game_id,played_at,notes,day_seq,games(name),match_scores(id,match_id,player_id,is_winner,points,players(name))"
	namedSelect  = "id,name,created_at"
)

func nameOf(rel domain.OneOrMany[nameRow]) string {
	if n := rel.One(); n != nil {
		return n.Name
	}
	return ""
}

func (r resultRow) toRecord() domain.MatchResultRecord {
	rec := domain.MatchResultRecord{
		MatchID:    r.MatchID,
		PlayerID:   r.PlayerID,
		PlayerName: nameOf(r.Players),
		IsWinner:   r.IsWinner,
	}
	if m := r.Matches.One(); m != nil {
		rec.PlayedAt = parseTime(m.PlayedAt)
		rec.GameID = m.GameID
	}
	return rec
}

func (r matchRow) toMatch() domain.Match {
	m := domain.Match{
		ID:       r.ID,
		GameID:   r.GameID,
		GameName: nameOf(r.Games),
		PlayedAt: parseTime(r.PlayedAt),
		DaySeq:   r.DaySeq,
	}
	if r.Notes != nil {
		m.Notes = *r.Notes
	}
	for _, s := range r.MatchScores.All() {
		m.Scores = append(m.Scores, domain.MatchScore{
			ID:         s.ID,
			MatchID:    r.ID,
			PlayerID:   s.PlayerID,
			PlayerName: nameOf(s.Players),
			IsWinner:   s.IsWinner,
			Points:     s.Points,
		})
	}
	return m
}
