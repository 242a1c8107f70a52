package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"friends-scoreboard/internal/database"
	"friends-scoreboard/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "scoreboard.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, zerolog.Nop())
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPlayers_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	alice, err := s.CreatePlayer(ctx, "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Name)
	assert.NotEmpty(t, alice.ID)

	_, err = s.CreatePlayer(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	_, err = s.CreatePlayer(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = s.CreatePlayer(ctx, "Bob")
	require.NoError(t, err)

	page, err := s.ListPlayers(ctx, domain.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Players, 2)
	assert.Equal(t, "Alice", page.Players[0].Name)

	page, err = s.ListPlayers(ctx, domain.ListQuery{Search: "BO", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Players, 1)
	assert.Equal(t, "Bob", page.Players[0].Name)

	require.NoError(t, s.DeletePlayer(ctx, alice.ID))
	assert.ErrorIs(t, s.DeletePlayer(ctx, alice.ID), domain.ErrNotFound)
}

func TestPlayers_SearchEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.CreatePlayer(ctx, "100% Carl")
	require.NoError(t, err)
	_, err = s.CreatePlayer(ctx, "Dana")
	require.NoError(t, err)

	page, err := s.ListPlayers(ctx, domain.ListQuery{Search: "%"})
	require.NoError(t, err)
	require.Len(t, page.Players, 1)
	assert.Equal(t, "100% Carl", page.Players[0].Name)
}

func TestRecordMatch_AssignsDaySeqAndScores(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	game, err := s.CreateGame(ctx, "Catan")
	require.NoError(t, err)
	a, err := s.CreatePlayer(ctx, "Alice")
	require.NoError(t, err)
	b, err := s.CreatePlayer(ctx, "Bob")
	require.NoError(t, err)

	record := func(playedAt string, aWins bool) *domain.Match {
		m, err := s.RecordMatch(ctx, domain.NewMatch{
			GameID:   game.ID,
			PlayedAt: at(playedAt),
			Participants: []domain.Participant{
				{PlayerID: a.ID, IsWinner: aWins},
				{PlayerID: b.ID, IsWinner: !aWins},
			},
		})
		require.NoError(t, err)
		return m
	}

	first := record("2025-03-01T10:00:00Z", true)
	second := record("2025-03-01T20:00:00Z", false)
	other := record("2025-03-02T09:00:00Z", true)

	require.NotNil(t, first.DaySeq)
	assert.Equal(t, 1, *first.DaySeq)
	assert.Equal(t, 2, *second.DaySeq)
	assert.Equal(t, 1, *other.DaySeq)

	assert.Equal(t, "Catan", first.GameName)
	require.Len(t, first.Scores, 2)
	assert.Equal(t, []string{"Alice"}, first.Winners())
	assert.Equal(t, 1, first.Scores[0].Points)
	assert.Equal(t, 0, first.Scores[1].Points)

	feed, err := s.ResultFeed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, feed, 6)
	assert.Equal(t, "Alice", feed[0].PlayerName)
	assert.True(t, feed[0].IsWinner)
	assert.True(t, feed[0].PlayedAt.Equal(at("2025-03-01T10:00:00Z")))

	last, err := s.LastMatchParticipants(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, last)
}

func TestRecordMatch_UnknownReferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.RecordMatch(ctx, domain.NewMatch{GameID: "missing", PlayedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	game, err := s.CreateGame(ctx, "Uno")
	require.NoError(t, err)
	_, err = s.RecordMatch(ctx, domain.NewMatch{
		GameID:       game.ID,
		PlayedAt:     time.Now(),
		Participants: []domain.Participant{{PlayerID: "ghost", IsWinner: true}},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	page, err := s.RecentMatches(ctx, domain.FeedQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total, "failed insert must roll back")
}

func TestDelete_GuardedByReferences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	game, err := s.CreateGame(ctx, "Chess")
	require.NoError(t, err)
	p, err := s.CreatePlayer(ctx, "Alice")
	require.NoError(t, err)
	_, err = s.RecordMatch(ctx, domain.NewMatch{
		GameID:       game.ID,
		PlayedAt:     at("2025-01-01T12:00:00Z"),
		Participants: []domain.Participant{{PlayerID: p.ID, IsWinner: true}},
	})
	require.NoError(t, err)

	err = s.DeletePlayer(ctx, p.ID)
	var inUse *domain.InUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, "player", inUse.Entity)
	assert.Equal(t, 1, inUse.Count)

	err = s.DeleteGame(ctx, game.ID)
	assert.ErrorIs(t, err, domain.ErrInUse)
}

func TestRecentMatches_FiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	catan, err := s.CreateGame(ctx, "Catan")
	require.NoError(t, err)
	uno, err := s.CreateGame(ctx, "Uno")
	require.NoError(t, err)
	p, err := s.CreatePlayer(ctx, "Alice")
	require.NoError(t, err)

	for i, ts := range []string{"2025-01-01T10:00:00Z", "2025-01-02T10:00:00Z", "2025-01-03T10:00:00Z"} {
		gameID := catan.ID
		if i == 1 {
			gameID = uno.ID
		}
		_, err := s.RecordMatch(ctx, domain.NewMatch{
			GameID:       gameID,
			PlayedAt:     at(ts),
			Participants: []domain.Participant{{PlayerID: p.ID, IsWinner: true}},
		})
		require.NoError(t, err)
	}

	page, err := s.RecentMatches(ctx, domain.FeedQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Matches, 2)
	assert.True(t, page.Matches[0].PlayedAt.Equal(at("2025-01-03T10:00:00Z")))
	assert.Len(t, page.Matches[0].Scores, 1)

	page, err = s.RecentMatches(ctx, domain.FeedQuery{GameID: catan.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	from, to := at("2025-01-02T00:00:00Z"), at("2025-01-02T23:59:59Z")
	page, err = s.RecentMatches(ctx, domain.FeedQuery{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	assert.Equal(t, "Uno", page.Matches[0].GameName)
}
