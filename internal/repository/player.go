package repository

import (
	"context"
	"database/sql"

	"friends-scoreboard/internal/domain"

	"github.com/rs/zerolog"
)

var players = namedTable{table: "players", entity: "player", refTable: "match_scores", refColumn: "player_id"}

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *PlayerRepository) ListPlayers(ctx context.Context, q domain.ListQuery) (domain.PlayerPage, error) {
	rows, total, err := players.list(ctx, r.db, q)
	if err != nil {
		r.logger.Error().Err(err).Str("search", q.Search).Msg("failed to list players")
		return domain.PlayerPage{}, err
	}

	page := domain.PlayerPage{Players: make([]domain.Player, len(rows)), Total: total}
	for i, row := range rows {
		page.Players[i] = domain.Player{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
	}
	return page, nil
}

func (r *PlayerRepository) CreatePlayer(ctx context.Context, name string) (*domain.Player, error) {
	row, err := players.create(ctx, r.db, name)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("player_id", row.ID).Str("name", row.Name).Msg("player created")
	return &domain.Player{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}, nil
}

func (r *PlayerRepository) DeletePlayer(ctx context.Context, id string) error {
	if err := players.delete(ctx, r.db, id); err != nil {
		return err
	}
	r.logger.Info().Str("player_id", id).Msg("player deleted")
	return nil
}
