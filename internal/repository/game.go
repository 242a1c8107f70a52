package repository

import (
	"context"
	"database/sql"

	"friends-scoreboard/internal/domain"

	"github.com/rs/zerolog"
)

var games = namedTable{table: "games", entity: "game", refTable: "matches", refColumn: "game_id"}

type GameRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGameRepository(sqlDB *sql.DB, logger zerolog.Logger) *GameRepository {
	return &GameRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *GameRepository) ListGames(ctx context.Context, q domain.ListQuery) (domain.GamePage, error) {
	rows, total, err := games.list(ctx, r.db, q)
	if err != nil {
		r.logger.Error().Err(err).Str("search", q.Search).Msg("failed to list games")
		return domain.GamePage{}, err
	}

	page := domain.GamePage{Games: make([]domain.Game, len(rows)), Total: total}
	for i, row := range rows {
		page.Games[i] = domain.Game{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
	}
	return page, nil
}

func (r *GameRepository) CreateGame(ctx context.Context, name string) (*domain.Game, error) {
	row, err := games.create(ctx, r.db, name)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("game_id", row.ID).Str("name", row.Name).Msg("game created")
	return &domain.Game{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}, nil
}

func (r *GameRepository) DeleteGame(ctx context.Context, id string) error {
	if err := games.delete(ctx, r.db, id); err != nil {
		return err
	}
	r.logger.Info().Str("game_id", id).Msg("game deleted")
	return nil
}
