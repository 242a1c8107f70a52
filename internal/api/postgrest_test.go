package api

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"friends-scoreboard/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type fakeRoute func(ctx *fasthttp.RequestCtx)

// newTestClient serves handler over an in-memory listener and returns a
// client wired to it.
func newTestClient(t *testing.T, handler fakeRoute) *PostgRESTClient {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: fasthttp.RequestHandler(handler)}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	hc := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}
	return newPostgRESTClient("http://postgrest.test/rest/v1", "anon-key", hc, zerolog.Nop())
}

func TestParseContentRange(t *testing.T) {
	assert.Equal(t, 3573, parseContentRange("0-24/3573"))
	assert.Equal(t, 0, parseContentRange("*/0"))
	assert.Equal(t, -1, parseContentRange("0-24/*"))
	assert.Equal(t, -1, parseContentRange("garbage"))
}

func TestResultFeed_DecodesEmbeddedRelations(t *testing.T) {
	var gotPath, gotGame, gotKey, gotAuth string
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		gotGame = string(ctx.QueryArgs().Peek("matches.game_id"))
		gotKey = string(ctx.Request.Header.Peek("apikey"))
		gotAuth = string(ctx.Request.Header.Peek("Authorization"))
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`[
			{"match_id":"m1","player_id":"p1","is_winner":true,
			 "players":{"name":"Alice"},
			 "matches":{"played_at":"2025-03-01T10:00:00+00:00","game_id":"g1"}},
			{"match_id":"m1","player_id":"p2","is_winner":false,
			 "players":[{"name":"Bob"}],
			 "matches":[{"played_at":"not a date","game_id":"g1"}]},
			{"match_id":"m2","player_id":"p3","is_winner":false,
			 "players":null,"matches":null}
		]`)
	})

	records, err := c.ResultFeed(context.Background(), "g1")
	require.NoError(t, err)

	assert.Equal(t, "/rest/v1/match_scores", gotPath)
	assert.Equal(t, "eq.g1", gotGame)
	assert.Equal(t, "anon-key", gotKey)
	assert.Equal(t, "Bearer anon-key", gotAuth)

	require.Len(t, records, 3)
	assert.Equal(t, "Alice", records[0].PlayerName)
	assert.True(t, records[0].IsWinner)
	assert.True(t, records[0].PlayedAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Bob", records[1].PlayerName)
	assert.True(t, records[1].PlayedAt.IsZero())
	assert.Empty(t, records[2].PlayerName)
	assert.Empty(t, records[2].GameID)
}

func TestRecentMatches_UsesExactCount(t *testing.T) {
	var prefer string
	var playedAt []string
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		prefer = string(ctx.Request.Header.Peek("Prefer"))
		ctx.QueryArgs().VisitAll(func(k, v []byte) {
			if string(k) == "played_at" {
				playedAt = append(playedAt, string(v))
			}
		})
		ctx.Response.Header.Set("Content-Range", "0-0/42")
		ctx.SetBodyString(`[{"id":"m1","game_id":"g1","played_at":"2025-03-01T10:00:00Z","notes":null,"day_seq":3,
			"games":{"name":"Catan"},
			"match_scores":[{"id":"s1","player_id":"p1","is_winner":true,"points":1,"players":{"name":"Alice"}}]}]`)
	})

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	page, err := c.RecentMatches(context.Background(), domain.FeedQuery{From: &from, Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, preferCount, prefer)
	assert.Equal(t, []string{"gte.2025-03-01T00:00:00Z"}, playedAt)
	assert.Equal(t, 42, page.Total)
	require.Len(t, page.Matches, 1)
	m := page.Matches[0]
	assert.Equal(t, "Catan", m.GameName)
	require.NotNil(t, m.DaySeq)
	assert.Equal(t, 3, *m.DaySeq)
	assert.Equal(t, []string{"Alice"}, m.Winners())
	assert.Equal(t, "m1", m.Scores[0].MatchID)
}

func TestCreatePlayer_DuplicateName(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusConflict)
		ctx.SetBodyString(`{"code":"23505","message":"duplicate key value violates unique constraint"}`)
	})

	_, err := c.CreatePlayer(context.Background(), "Alice")
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	_, err = c.CreatePlayer(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestDeletePlayer(t *testing.T) {
	tests := []struct {
		name      string
		refs      string
		deleted   string
		wantErr   error
		wantInUse int
	}{
		{name: "deleted", refs: "*/0", deleted: `[{"id":"p1"}]`},
		{name: "referenced", refs: "0-0/4", wantErr: domain.ErrInUse, wantInUse: 4},
		{name: "hidden or missing", refs: "*/0", deleted: `[]`, wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleteCalled bool
			c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
				if string(ctx.Method()) == fasthttp.MethodDelete {
					deleteCalled = true
					ctx.SetBodyString(tt.deleted)
					return
				}
				ctx.Response.Header.Set("Content-Range", tt.refs)
				ctx.SetBodyString(`[]`)
			})

			err := c.DeletePlayer(context.Background(), "p1")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)

			var inUse *domain.InUseError
			if errors.As(err, &inUse) {
				assert.Equal(t, tt.wantInUse, inUse.Count)
				assert.False(t, deleteCalled)
			}
		})
	}
}

func TestRecordMatch_ReadsBackAndRollsBack(t *testing.T) {
	var calls []string
	failScores := false
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		calls = append(calls, string(ctx.Method())+" "+string(ctx.Path()))
		switch {
		case string(ctx.Path()) == "/rest/v1/match_scores" && failScores:
			ctx.SetStatusCode(fasthttp.StatusConflict)
			ctx.SetBodyString(`{"code":"23503","message":"violates foreign key constraint"}`)
		case string(ctx.Method()) == fasthttp.MethodGet:
			ctx.SetBodyString(`[{"id":"m1","game_id":"g1","played_at":"2025-03-01T10:00:00Z","day_seq":2,"games":{"name":"Uno"},"match_scores":[]}]`)
		default:
			ctx.SetStatusCode(fasthttp.StatusCreated)
		}
	})

	nm := domain.NewMatch{
		GameID:       "g1",
		PlayedAt:     time.Now(),
		Participants: []domain.Participant{{PlayerID: "p1", IsWinner: true}},
	}
	m, err := c.RecordMatch(context.Background(), nm)
	require.NoError(t, err)
	require.NotNil(t, m.DaySeq)
	assert.Equal(t, 2, *m.DaySeq)
	assert.Equal(t, []string{
		"POST /rest/v1/matches",
		"POST /rest/v1/match_scores",
		"GET /rest/v1/matches",
	}, calls)

	calls = nil
	failScores = true
	_, err = c.RecordMatch(context.Background(), nm)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{
		"POST /rest/v1/matches",
		"POST /rest/v1/match_scores",
		"DELETE /rest/v1/matches",
	}, calls)
}

func TestAPIError_Message(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("no api key")
	})

	_, err := c.ListGames(context.Background(), domain.ListQuery{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, fasthttp.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "no api key", apiErr.Message)
}
