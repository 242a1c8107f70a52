package service

import (
	"context"
	"fmt"
	"strings"

	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/events"
	"friends-scoreboard/internal/prefs"

	"github.com/rs/zerolog"
)

type MatchService struct {
	backend Backend
	prefs   *prefs.Store
	bus     *events.Bus
	now     Clock
	logger  zerolog.Logger
}

func NewMatchService(backend Backend, store *prefs.Store, bus *events.Bus, now Clock, logger zerolog.Logger) *MatchService {
	return &MatchService{backend: backend, prefs: store, bus: bus, now: now, logger: logger}
}

// Validate checks a new match before it is stored.
func Validate(m domain.NewMatch) error {
	if strings.TrimSpace(m.GameID) == "" {
		return domain.Invalid("game is required")
	}
	if len(m.Participants) == 0 {
		return domain.Invalid("at least one participant is required")
	}

	seen := make(map[string]struct{}, len(m.Participants))
	winners := 0
	for _, p := range m.Participants {
		if strings.TrimSpace(p.PlayerID) == "" {
			return domain.Invalid("participant without player")
		}
		if _, dup := seen[p.PlayerID]; dup {
			return domain.Invalid("player " + p.PlayerID + " listed twice")
		}
		seen[p.PlayerID] = struct{}{}
		if p.IsWinner {
			winners++
		}
	}
	if winners == 0 {
		return domain.Invalid("at least one winner is required")
	}
	return nil
}

// Record stores a match with its scores and returns it as stored, with the
// backend-assigned day sequence.
func (s *MatchService) Record(ctx context.Context, m domain.NewMatch) (*domain.Match, error) {
	m.GameID = strings.TrimSpace(m.GameID)
	m.Notes = strings.TrimSpace(m.Notes)
	if err := Validate(m); err != nil {
		return nil, err
	}
	if m.PlayedAt.IsZero() {
		m.PlayedAt = s.now()
	}

	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	match, err := s.backend.RecordMatch(ctx, m)
	if err != nil {
		s.logger.Error().Err(err).Str("game_id", m.GameID).Msg("failed to record match")
		return nil, fmt.Errorf("failed to record match: %w", err)
	}

	if _, err := s.prefs.Update(func(p *prefs.Prefs) { p.LastGameID = match.GameID }); err != nil {
		s.logger.Warn().Err(err).Msg("failed to remember last game")
	}

	players := make([]string, 0, len(match.Scores))
	winners := make([]string, 0, len(match.Scores))
	for _, sc := range match.Scores {
		players = append(players, sc.PlayerID)
		if sc.IsWinner {
			winners = append(winners, sc.PlayerID)
		}
	}
	events.Publish(s.bus, events.MatchRecorded{
		MatchID:  match.ID,
		GameID:   match.GameID,
		PlayedAt: match.PlayedAt,
		DaySeq:   match.DaySeq,
		Players:  players,
		Winners:  winners,
	})
	events.Publish(s.bus, events.TablesChanged{Table: "matches", Source: "local"})

	return match, nil
}

// LastParticipants returns the distinct players of the most recent match of
// gameID, defaulting to the last game a match was recorded for.
func (s *MatchService) LastParticipants(ctx context.Context, gameID string) ([]string, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		gameID = s.prefs.Get().LastGameID
	}
	if gameID == "" {
		return []string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	ids, err := s.backend.LastMatchParticipants(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last participants: %w", err)
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
