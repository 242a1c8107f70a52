package service

import (
	"context"
	"fmt"

	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/leaderboard"
	"friends-scoreboard/internal/prefs"

	"github.com/rs/zerolog"
)

// LeaderboardQuery selects a ranking. Blank Range and a nil GameID fall back
// to the saved preferences; an empty GameID means every game.
type LeaderboardQuery struct {
	Range      leaderboard.RangeKey `json:"range"`
	CustomFrom string               `json:"custom_from"`
	CustomTo   string               `json:"custom_to"`
	GameID     *string              `json:"game_id"`
	Search     string               `json:"search"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
}

type LeaderboardSummary struct {
	Matches int `json:"matches"`
	Players int `json:"players"`
	Wins    int `json:"wins"`
	Ranked  int `json:"ranked"`
}

type LeaderboardView struct {
	Range      leaderboard.RangeKey                    `json:"range"`
	Label      string                                  `json:"label"`
	CustomFrom string                                  `json:"custom_from,omitempty"`
	CustomTo   string                                  `json:"custom_to,omitempty"`
	GameID     string                                  `json:"game_id"`
	Rows       leaderboard.Page[leaderboard.RankedRow] `json:"rows"`
	Podium     []leaderboard.PodiumEntry               `json:"podium"`
	Summary    LeaderboardSummary                      `json:"summary"`
	Degraded   bool                                    `json:"degraded"`
}

type LeaderboardService struct {
	backend Backend
	prefs   *prefs.Store
	now     Clock
	logger  zerolog.Logger
}

func NewLeaderboardService(backend Backend, store *prefs.Store, now Clock, logger zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{backend: backend, prefs: store, now: now, logger: logger}
}

// Get computes the ranking for q. A failed fetch is logged and reported as
// a degraded, empty ranking rather than an error.
func (s *LeaderboardService) Get(ctx context.Context, q LeaderboardQuery) (*LeaderboardView, error) {
	q = s.withPrefs(q)

	window, err := leaderboard.ResolveRange(q.Range, q.CustomFrom, q.CustomTo, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	gameID := *q.GameID

	view := &LeaderboardView{
		Range:      q.Range,
		Label:      leaderboard.Label(q.Range, q.CustomFrom, q.CustomTo),
		CustomFrom: q.CustomFrom,
		CustomTo:   q.CustomTo,
		GameID:     gameID,
	}

	fetchCtx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	records, err := s.backend.ResultFeed(fetchCtx, gameID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error().Err(err).Str("game_id", gameID).Msg("failed to fetch results, serving empty ranking")
		view.Degraded = true
		records = nil
	}

	standings := leaderboard.Aggregate(records, leaderboard.Filter{Window: window, GameID: gameID})
	view.Podium = leaderboard.SelectPodium(standings.Rows)
	view.Summary = LeaderboardSummary{
		Matches: standings.Summary.Matches,
		Players: standings.Summary.Players,
		Wins:    standings.Summary.Wins,
		Ranked:  len(standings.Rows),
	}
	view.Rows = leaderboard.Paginate(leaderboard.Search(standings.Rows, q.Search), q.Page, q.PageSize)

	s.logger.Debug().
		Str("range", string(q.Range)).
		Str("game_id", gameID).
		Int("records", len(records)).
		Int("ranked", view.Summary.Ranked).
		Msg("leaderboard computed")
	return view, nil
}

func (s *LeaderboardService) withPrefs(q LeaderboardQuery) LeaderboardQuery {
	saved := s.prefs.Get()
	if q.Range == "" {
		q.Range, q.CustomFrom, q.CustomTo = saved.Range, saved.CustomFrom, saved.CustomTo
	}
	if q.GameID == nil {
		gameID := saved.GameID
		q.GameID = &gameID
	}
	if q.PageSize <= 0 {
		q.PageSize = saved.PageSize
	}
	q.PageSize = min(q.PageSize, constants.MaxPageSize)
	return q
}
