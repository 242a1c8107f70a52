package service

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/prefs"

	"github.com/rs/zerolog"
)

type fakeBackend struct {
	mu       sync.Mutex
	records  []domain.MatchResultRecord
	feedErr  error
	players  []domain.Player
	games    []domain.Game
	recorded []domain.NewMatch
	last     []string
	listQ    []domain.ListQuery
	feedQ    []domain.FeedQuery
	deleteFn func(id string) error
}

func (f *fakeBackend) ResultFeed(_ context.Context, _ string) ([]domain.MatchResultRecord, error) {
	return f.records, f.feedErr
}

func (f *fakeBackend) RecentMatches(_ context.Context, q domain.FeedQuery) (domain.FeedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedQ = append(f.feedQ, q)
	return domain.FeedPage{
		Total: 12,
		Matches: []domain.Match{{
			ID:     "m1",
			Scores: []domain.MatchScore{{PlayerName: "Alice", IsWinner: true}, {PlayerName: "Bob"}},
		}},
	}, nil
}

func (f *fakeBackend) LastMatchParticipants(_ context.Context, _ string) ([]string, error) {
	return f.last, nil
}

func (f *fakeBackend) RecordMatch(_ context.Context, m domain.NewMatch) (*domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, m)
	seq := len(f.recorded)
	out := &domain.Match{ID: "m" + string(rune('0'+seq)), GameID: m.GameID, PlayedAt: m.PlayedAt, DaySeq: &seq}
	for _, p := range m.Participants {
		out.Scores = append(out.Scores, domain.MatchScore{PlayerID: p.PlayerID, IsWinner: p.IsWinner})
	}
	return out, nil
}

func (f *fakeBackend) ListPlayers(_ context.Context, q domain.ListQuery) (domain.PlayerPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listQ = append(f.listQ, q)
	var out []domain.Player
	for _, p := range f.players {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			out = append(out, p)
		}
	}
	return domain.PlayerPage{Players: out, Total: len(out)}, nil
}

func (f *fakeBackend) CreatePlayer(_ context.Context, name string) (*domain.Player, error) {
	return &domain.Player{ID: "p-" + name, Name: name}, nil
}

func (f *fakeBackend) DeletePlayer(_ context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	return nil
}

func (f *fakeBackend) ListGames(_ context.Context, q domain.ListQuery) (domain.GamePage, error) {
	var out []domain.Game
	for _, g := range f.games {
		if strings.Contains(strings.ToLower(g.Name), strings.ToLower(q.Search)) {
			out = append(out, g)
		}
	}
	return domain.GamePage{Games: out, Total: len(out)}, nil
}

func (f *fakeBackend) CreateGame(_ context.Context, name string) (*domain.Game, error) {
	return &domain.Game{ID: "g-" + name, Name: name}, nil
}

func (f *fakeBackend) DeleteGame(_ context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	return nil
}

func newPrefs(t *testing.T) *prefs.Store {
	t.Helper()
	return prefs.Open(filepath.Join(t.TempDir(), "prefs.json"), zerolog.Nop())
}

func fixedClock(ts string) Clock {
	now, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return now }
}
