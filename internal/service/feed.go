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

// FeedQuery pages through recorded matches. From and To are calendar
// dates (YYYY-MM-DD) and may be blank.
type FeedQuery struct {
	GameID   string `json:"game_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type FeedItem struct {
	domain.Match
	Winners []string `json:"winners"`
}

type FeedView struct {
	Matches    []FeedItem `json:"matches"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
}

type FeedService struct {
	backend Backend
	prefs   *prefs.Store
	now     Clock
	logger  zerolog.Logger
}

func NewFeedService(backend Backend, store *prefs.Store, now Clock, logger zerolog.Logger) *FeedService {
	return &FeedService{backend: backend, prefs: store, now: now, logger: logger}
}

// Recent returns one page of matches, newest first.
func (s *FeedService) Recent(ctx context.Context, q FeedQuery) (*FeedView, error) {
	window, err := leaderboard.CustomWindow(q.From, q.To, s.now().Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	size := q.PageSize
	if size <= 0 {
		size = s.prefs.Get().FeedPageSize
	}
	size = min(size, constants.MaxPageSize)
	page := max(q.Page, 1)

	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	res, err := s.backend.RecentMatches(ctx, domain.FeedQuery{
		GameID: q.GameID,
		From:   window.From,
		To:     window.To,
		Offset: (page - 1) * size,
		Limit:  size,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("game_id", q.GameID).Msg("failed to fetch match feed")
		return nil, fmt.Errorf("failed to fetch match feed: %w", err)
	}

	view := &FeedView{
		Matches:    make([]FeedItem, 0, len(res.Matches)),
		Page:       page,
		PageSize:   size,
		Total:      res.Total,
		TotalPages: leaderboard.TotalPages(res.Total, size),
	}
	for _, m := range res.Matches {
		view.Matches = append(view.Matches, FeedItem{Match: m, Winners: m.Winners()})
	}
	return view, nil
}
