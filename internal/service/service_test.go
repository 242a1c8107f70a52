package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/events"
	"friends-scoreboard/internal/leaderboard"
	"friends-scoreboard/internal/prefs"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(match, player, name string, win bool, at string) domain.MatchResultRecord {
	ts, _ := time.Parse(time.RFC3339, at)
	return domain.MatchResultRecord{MatchID: match, PlayerID: player, PlayerName: name, IsWinner: win, PlayedAt: ts, GameID: "g1"}
}

func TestLeaderboard_Get(t *testing.T) {
	backend := &fakeBackend{records: []domain.MatchResultRecord{
		rec("m1", "a", "Alice", true, "2025-03-10T10:00:00Z"),
		rec("m1", "b", "Bob", false, "2025-03-10T10:00:00Z"),
		rec("m2", "a", "Alice", false, "2025-03-11T10:00:00Z"),
		rec("m2", "b", "Bob", true, "2025-03-11T10:00:00Z"),
		rec("m3", "a", "Alice", true, "2025-02-01T10:00:00Z"),
	}}
	svc := NewLeaderboardService(backend, newPrefs(t), fixedClock("2025-03-12T12:00:00Z"), zerolog.Nop())

	view, err := svc.Get(context.Background(), LeaderboardQuery{Range: leaderboard.RangeMonth})
	require.NoError(t, err)
	assert.False(t, view.Degraded)
	assert.Equal(t, "Month", view.Label)
	assert.Equal(t, LeaderboardSummary{Matches: 2, Players: 2, Wins: 2, Ranked: 2}, view.Summary)
	require.Len(t, view.Podium, 1)
	assert.Equal(t, "Alice, Bob", view.Podium[0].Name)

	view, err = svc.Get(context.Background(), LeaderboardQuery{Search: "bo"})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Summary.Matches)
	require.Len(t, view.Rows.Items, 1)
	assert.Equal(t, "Bob", view.Rows.Items[0].PlayerName)
	assert.Equal(t, 2, view.Rows.Items[0].Rank)
	require.NotEmpty(t, view.Podium)
	assert.Equal(t, "Alice", view.Podium[0].Name, "podium ignores the search")
}

func TestLeaderboard_UsesSavedPrefs(t *testing.T) {
	store := newPrefs(t)
	_, err := store.Save(prefs.Prefs{Range: leaderboard.RangeDay, GameID: "g1", PageSize: 5})
	require.NoError(t, err)

	backend := &fakeBackend{records: []domain.MatchResultRecord{
		rec("m1", "a", "Alice", true, "2025-03-12T09:00:00Z"),
		rec("m2", "a", "Alice", true, "2025-03-11T09:00:00Z"),
	}}
	svc := NewLeaderboardService(backend, store, fixedClock("2025-03-12T12:00:00Z"), zerolog.Nop())

	view, err := svc.Get(context.Background(), LeaderboardQuery{})
	require.NoError(t, err)
	assert.Equal(t, leaderboard.RangeDay, view.Range)
	assert.Equal(t, "g1", view.GameID)
	assert.Equal(t, 5, view.Rows.PageSize)
	assert.Equal(t, 1, view.Summary.Matches)

	all := ""
	view, err = svc.Get(context.Background(), LeaderboardQuery{Range: leaderboard.RangeTotal, GameID: &all})
	require.NoError(t, err)
	assert.Empty(t, view.GameID)
	assert.Equal(t, 2, view.Summary.Matches)
}

func TestLeaderboard_FetchFailureIsDegraded(t *testing.T) {
	backend := &fakeBackend{feedErr: errors.New("connection refused")}
	svc := NewLeaderboardService(backend, newPrefs(t), fixedClock("2025-03-12T12:00:00Z"), zerolog.Nop())

	view, err := svc.Get(context.Background(), LeaderboardQuery{})
	require.NoError(t, err)
	assert.True(t, view.Degraded)
	assert.Empty(t, view.Rows.Items)
	assert.Empty(t, view.Podium)
	assert.Equal(t, LeaderboardSummary{}, view.Summary)
}

func TestLeaderboard_InvalidRange(t *testing.T) {
	svc := NewLeaderboardService(&fakeBackend{}, newPrefs(t), fixedClock("2025-03-12T12:00:00Z"), zerolog.Nop())

	_, err := svc.Get(context.Background(), LeaderboardQuery{Range: "fortnight"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, leaderboard.ErrInvalidRange)

	_, err = svc.Get(context.Background(), LeaderboardQuery{Range: leaderboard.RangeCustom, CustomFrom: "12/03/2025"})
	assert.ErrorIs(t, err, leaderboard.ErrInvalidRange)
}

func TestFeed_Recent(t *testing.T) {
	backend := &fakeBackend{}
	svc := NewFeedService(backend, newPrefs(t), fixedClock("2025-03-12T12:00:00Z"), zerolog.Nop())

	view, err := svc.Recent(context.Background(), FeedQuery{From: "2025-03-01", Page: 2})
	require.NoError(t, err)

	require.Len(t, backend.feedQ, 1)
	q := backend.feedQ[0]
	assert.Equal(t, 10, q.Offset)
	assert.Equal(t, 10, q.Limit)
	require.NotNil(t, q.From)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *q.From)
	assert.Nil(t, q.To)

	assert.Equal(t, 12, view.Total)
	assert.Equal(t, 2, view.TotalPages)
	require.Len(t, view.Matches, 1)
	assert.Equal(t, []string{"Alice"}, view.Matches[0].Winners)
}

func TestValidate(t *testing.T) {
	ok := domain.NewMatch{GameID: "g", Participants: []domain.Participant{{PlayerID: "a", IsWinner: true}, {PlayerID: "b"}}}
	assert.NoError(t, Validate(ok))

	tests := map[string]domain.NewMatch{
		"no game":         {Participants: ok.Participants},
		"no participants": {GameID: "g"},
		"duplicate":       {GameID: "g", Participants: []domain.Participant{{PlayerID: "a", IsWinner: true}, {PlayerID: "a"}}},
		"no winner":       {GameID: "g", Participants: []domain.Participant{{PlayerID: "a"}, {PlayerID: "b"}}},
		"blank player":    {GameID: "g", Participants: []domain.Participant{{PlayerID: " ", IsWinner: true}}},
	}
	for name, m := range tests {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(m), domain.ErrValidation)
		})
	}
}

func TestMatch_RecordPublishesAndRemembersGame(t *testing.T) {
	backend := &fakeBackend{}
	store := newPrefs(t)
	bus := events.NewBus(zerolog.Nop())
	svc := NewMatchService(backend, store, bus, fixedClock("2025-03-12T12:00:00Z"), zerolog.Nop())

	var recorded []events.MatchRecorded
	var changed []events.TablesChanged
	defer events.Subscribe(bus, func(ev events.MatchRecorded) { recorded = append(recorded, ev) })()
	defer events.Subscribe(bus, func(ev events.TablesChanged) { changed = append(changed, ev) })()

	m, err := svc.Record(context.Background(), domain.NewMatch{
		GameID:       " g1 ",
		Participants: []domain.Participant{{PlayerID: "a", IsWinner: true}, {PlayerID: "b"}},
	})
	require.NoError(t, err)
	require.NotNil(t, m.DaySeq)
	assert.Equal(t, 1, *m.DaySeq)

	require.Len(t, backend.recorded, 1)
	assert.Equal(t, "g1", backend.recorded[0].GameID)
	assert.Equal(t, time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC), backend.recorded[0].PlayedAt)

	require.Len(t, recorded, 1)
	assert.Equal(t, []string{"a", "b"}, recorded[0].Players)
	assert.Equal(t, []string{"a"}, recorded[0].Winners)
	assert.Equal(t, []events.TablesChanged{{Table: "matches", Source: "local"}}, changed)
	assert.Equal(t, "g1", store.Get().LastGameID)

	_, err = svc.Record(context.Background(), domain.NewMatch{GameID: "g1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Len(t, backend.recorded, 1)
}

func TestMatch_LastParticipants(t *testing.T) {
	backend := &fakeBackend{last: []string{"a", "b", "a"}}
	store := newPrefs(t)
	svc := NewMatchService(backend, store, events.NewBus(zerolog.Nop()), fixedClock("2025-03-12T12:00:00Z"), zerolog.Nop())

	ids, err := svc.LastParticipants(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Update(func(p *prefs.Prefs) { p.LastGameID = "g1" })
	require.NoError(t, err)
	ids, err = svc.LastParticipants(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestRoster_SearchAndDelete(t *testing.T) {
	backend := &fakeBackend{
		players: []domain.Player{{ID: "1", Name: "Alice"}, {ID: "2", Name: "Alina"}, {ID: "3", Name: "Bob"}},
		games:   []domain.Game{{ID: "g", Name: "Alien Chess"}},
	}
	svc := NewRosterService(backend, events.NewBus(zerolog.Nop()), zerolog.Nop())

	res, err := svc.Search(context.Background(), " ali ")
	require.NoError(t, err)
	assert.Len(t, res.Players, 2)
	assert.Len(t, res.Games, 1)

	res, err = svc.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, res.Players)
	assert.NotNil(t, res.Games)

	view, err := svc.ListPlayers(context.Background(), ListRequest{Page: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Page)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 20, backend.listQ[len(backend.listQ)-1].Limit)

	backend.deleteFn = func(string) error { return &domain.InUseError{Entity: "player", Count: 3} }
	err = svc.DeletePlayer(context.Background(), "1")
	var inUse *domain.InUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, 3, inUse.Count)
}
