package service

import (
	"context"
	"fmt"
	"strings"

	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/events"
	"friends-scoreboard/internal/leaderboard"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type ListRequest struct {
	Search   string `json:"search"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type PlayersView struct {
	Players    []domain.Player `json:"players"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

type GamesView struct {
	Games      []domain.Game `json:"games"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

type SearchResult struct {
	Players []domain.Player `json:"players"`
	Games   []domain.Game   `json:"games"`
}

// RosterService manages players and games.
type RosterService struct {
	backend Backend
	bus     *events.Bus
	logger  zerolog.Logger
}

func NewRosterService(backend Backend, bus *events.Bus, logger zerolog.Logger) *RosterService {
	return &RosterService{backend: backend, bus: bus, logger: logger}
}

func listQuery(r ListRequest) (domain.ListQuery, int, int) {
	size := r.PageSize
	if size <= 0 {
		size = constants.PlayersPageSize
	}
	size = min(size, constants.MaxPageSize)
	page := max(r.Page, 1)
	return domain.ListQuery{Search: strings.TrimSpace(r.Search), Offset: (page - 1) * size, Limit: size}, page, size
}

func (s *RosterService) ListPlayers(ctx context.Context, r ListRequest) (*PlayersView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	q, page, size := listQuery(r)
	res, err := s.backend.ListPlayers(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return &PlayersView{
		Players:    nonNil(res.Players),
		Page:       page,
		PageSize:   size,
		Total:      res.Total,
		TotalPages: leaderboard.TotalPages(res.Total, size),
	}, nil
}

func (s *RosterService) CreatePlayer(ctx context.Context, name string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	p, err := s.backend.CreatePlayer(ctx, name)
	if err != nil {
		return nil, err
	}
	events.Publish(s.bus, events.TablesChanged{Table: "players", Source: "local"})
	return p, nil
}

func (s *RosterService) DeletePlayer(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	if err := s.backend.DeletePlayer(ctx, id); err != nil {
		s.logger.Info().Err(err).Str("player_id", id).Msg("player not deleted")
		return err
	}
	events.Publish(s.bus, events.TablesChanged{Table: "players", Source: "local"})
	return nil
}

func (s *RosterService) ListGames(ctx context.Context, r ListRequest) (*GamesView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	q, page, size := listQuery(r)
	res, err := s.backend.ListGames(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return &GamesView{
		Games:      nonNil(res.Games),
		Page:       page,
		PageSize:   size,
		Total:      res.Total,
		TotalPages: leaderboard.TotalPages(res.Total, size),
	}, nil
}

func (s *RosterService) CreateGame(ctx context.Context, name string) (*domain.Game, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	g, err := s.backend.CreateGame(ctx, name)
	if err != nil {
		return nil, err
	}
	events.Publish(s.bus, events.TablesChanged{Table: "games", Source: "local"})
	return g, nil
}

func (s *RosterService) DeleteGame(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	if err := s.backend.DeleteGame(ctx, id); err != nil {
		s.logger.Info().Err(err).Str("game_id", id).Msg("game not deleted")
		return err
	}
	events.Publish(s.bus, events.TablesChanged{Table: "games", Source: "local"})
	return nil
}

// Search looks up players and games by name concurrently. A blank query
// returns nothing.
func (s *RosterService) Search(ctx context.Context, q string) (*SearchResult, error) {
	q = strings.TrimSpace(q)
	res := &SearchResult{Players: []domain.Player{}, Games: []domain.Game{}}
	if q == "" {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, constants.BackendTimeout)
	defer cancel()

	lq := domain.ListQuery{Search: q, Limit: constants.SearchSuggestionLimit}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := s.backend.ListPlayers(gCtx, lq)
		if err != nil {
			return fmt.Errorf("failed to search players: %w", err)
		}
		res.Players = nonNil(page.Players)
		return nil
	})
	g.Go(func() error {
		page, err := s.backend.ListGames(gCtx, lq)
		if err != nil {
			return fmt.Errorf("failed to search games: %w", err)
		}
		res.Games = nonNil(page.Games)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("query", q).Msg("search failed")
		return nil, err
	}
	return res, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
