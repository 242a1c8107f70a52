package service

import (
	"context"

	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/events"
)

// Backend is the relational collaborator that owns persistence. The
// SQLite repository, the PostgreSQL store and the PostgREST client all
// implement it.
type Backend interface {
	// ResultFeed returns every match result row, joined with player name
	// and match metadata, optionally restricted to one game.
	ResultFeed(ctx context.Context, gameID string) ([]domain.MatchResultRecord, error)
	// RecentMatches returns matches newest first with their participants.
	RecentMatches(ctx context.Context, q domain.FeedQuery) (domain.FeedPage, error)
	// LastMatchParticipants returns the player ids of the most recent match
	// of a game, in stored order.
	LastMatchParticipants(ctx context.Context, gameID string) ([]string, error)
	// RecordMatch stores a match and its scores and returns the stored row,
	// including fields assigned by the backend.
	RecordMatch(ctx context.Context, m domain.NewMatch) (*domain.Match, error)

	ListPlayers(ctx context.Context, q domain.ListQuery) (domain.PlayerPage, error)
	CreatePlayer(ctx context.Context, name string) (*domain.Player, error)
	DeletePlayer(ctx context.Context, id string) error

	ListGames(ctx context.Context, q domain.ListQuery) (domain.GamePage, error)
	CreateGame(ctx context.Context, name string) (*domain.Game, error)
	DeleteGame(ctx context.Context, id string) error
}

// Listener forwards inserts made by other clients of the backend to the
// bus until ctx is done.
type Listener interface {
	Listen(ctx context.Context, bus *events.Bus) error
}
