package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"friends-scoreboard/internal/domain"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/valyala/fasthttp"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type named struct {
	table     string
	entity    string
	refTable  string
	refColumn string
}

var (
	players = named{table: "players", entity: "player", refTable: "match_scores", refColumn: "player_id"}
	games   = named{table: "games", entity: "game", refTable: "matches", refColumn: "game_id"}
)

func (c *PostgRESTClient) ResultFeed(ctx context.Context, gameID string) ([]domain.MatchResultRecord, error) {
	q := url.Values{}
	q.Set("select", resultSelect)
	if gameID != "" {
		q.Set("matches.game_id", eq(gameID))
	}

	rows, _, err := fetch[resultRow](ctx, c, request{method: fasthttp.MethodGet, table: "match_scores", query: q})
	if err != nil {
		c.logger.Error().Err(err).Str("game_id", gameID).Msg("failed to fetch result feed")
		return nil, fmt.Errorf("failed to fetch result feed: %w", err)
	}

	records := make([]domain.MatchResultRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

func (c *PostgRESTClient) RecentMatches(ctx context.Context, fq domain.FeedQuery) (domain.FeedPage, error) {
	q := url.Values{}
	q.Set("select", matchSelect)
	q.Set("order", "played_at.desc,created_at.desc")
	if fq.GameID != "" {
		q.Set("game_id", eq(fq.GameID))
	}
	if fq.From != nil {
		q.Add("played_at", "gte."+formatTime(*fq.From))
	}
	if fq.To != nil {
		q.Add("played_at", "lte."+formatTime(*fq.To))
	}
	pageQuery(q, fq.Limit, fq.Offset)

	rows, total, err := fetch[matchRow](ctx, c, request{
		method: fasthttp.MethodGet,
		table:  "matches",
		query:  q,
		prefer: []string{preferCount},
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to fetch recent matches")
		return domain.FeedPage{}, fmt.Errorf("failed to fetch recent matches: %w", err)
	}

	page := domain.FeedPage{Total: total, Matches: make([]domain.Match, 0, len(rows))}
	for _, r := range rows {
		page.Matches = append(page.Matches, r.toMatch())
	}
	return page, nil
}

func (c *PostgRESTClient) LastMatchParticipants(ctx context.Context, gameID string) ([]string, error) {
	q := url.Values{}
	q.Set("select", "id,match_scores(player_id)")
	q.Set("game_id", eq(gameID))
	q.Set("order", "played_at.desc,created_at.desc")
	q.Set("limit", "1")

	rows, _, err := fetch[matchRow](ctx, c, request{method: fasthttp.MethodGet, table: "matches", query: q})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch last match: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var ids []string
	for _, s := range rows[0].MatchScores.All() {
		ids = append(ids, s.PlayerID)
	}
	return ids, nil
}

// RecordMatch inserts the match, then its scores, then reads the stored
// match back so backend-assigned fields such as day_seq are returned. If the
// scores cannot be stored the match row is removed again.
func (c *PostgRESTClient) RecordMatch(ctx context.Context, nm domain.NewMatch) (*domain.Match, error) {
	matchID := uuid.NewString()
	_, err := c.do(ctx, request{
		method: fasthttp.MethodPost,
		table:  "matches",
		body: matchInsert{
			ID:       matchID,
			GameID:   nm.GameID,
			PlayedAt: formatTime(nm.PlayedAt),
			Notes:    nm.Notes,
		},
	})
	if err != nil {
		if apiCode(err) == codeForeignKeyViolation {
			return nil, fmt.Errorf("game %s: %w", nm.GameID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to insert match: %w", err)
	}

	scores := make([]scoreInsert, 0, len(nm.Participants))
	for _, p := range nm.Participants {
		id, err := gonanoid.New()
		if err != nil {
			c.rollbackMatch(ctx, matchID)
			return nil, fmt.Errorf("failed to generate score id: %w", err)
		}
		scores = append(scores, scoreInsert{
			ID:       id,
			MatchID:  matchID,
			PlayerID: p.PlayerID,
			IsWinner: p.IsWinner,
			Points:   domain.PointsFor(p.IsWinner),
		})
	}
	if len(scores) > 0 {
		if _, err := c.do(ctx, request{method: fasthttp.MethodPost, table: "match_scores", body: scores}); err != nil {
			c.rollbackMatch(ctx, matchID)
			switch apiCode(err) {
			case codeForeignKeyViolation:
				return nil, fmt.Errorf("participant: %w", domain.ErrNotFound)
			case codeUniqueViolation:
				return nil, domain.Invalid("participant listed twice")
			}
			return nil, fmt.Errorf("failed to insert scores: %w", err)
		}
	}

	q := url.Values{}
	q.Set("select", matchSelect)
	q.Set("id", eq(matchID))
	rows, _, err := fetch[matchRow](ctx, c, request{method: fasthttp.MethodGet, table: "matches", query: q})
	if err != nil {
		return nil, fmt.Errorf("failed to read back match: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("match %s: %w", matchID, domain.ErrNotFound)
	}

	match := rows[0].toMatch()
	c.logger.Info().
		Str("match_id", match.ID).
		Str("game_id", match.GameID).
		Int("participants", len(match.Scores)).
		Msg("match recorded")
	return &match, nil
}

func (c *PostgRESTClient) rollbackMatch(ctx context.Context, matchID string) {
	q := url.Values{}
	q.Set("id", eq(matchID))
	if _, err := c.do(ctx, request{method: fasthttp.MethodDelete, table: "matches", query: q}); err != nil {
		c.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to remove partial match")
	}
}

func (c *PostgRESTClient) listNamed(ctx context.Context, t named, lq domain.ListQuery) ([]namedRow, int, error) {
	q := url.Values{}
	q.Set("select", namedSelect)
	q.Set("order", "name.asc")
	if s := strings.TrimSpace(lq.Search); s != "" {
		q.Set("name", "ilike.*"+s+"*")
	}
	pageQuery(q, lq.Limit, lq.Offset)

	rows, total, err := fetch[namedRow](ctx, c, request{
		method: fasthttp.MethodGet,
		table:  t.table,
		query:  q,
		prefer: []string{preferCount},
	})
	if err != nil {
		c.logger.Error().Err(err).Str("table", t.table).Msg("failed to list")
		return nil, 0, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	return rows, total, nil
}

func (c *PostgRESTClient) createNamed(ctx context.Context, t named, name string) (*namedRow, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("select", namedSelect)
	rows, _, err := fetch[namedRow](ctx, c, request{
		method: fasthttp.MethodPost,
		table:  t.table,
		query:  q,
		body:   nameInsert{ID: uuid.NewString(), Name: name},
		prefer: []string{preferRepresentation},
	})
	if apiCode(err) == codeUniqueViolation {
		return nil, fmt.Errorf("%s %q: %w", t.entity, name, domain.ErrDuplicateName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", t.entity, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create %s: empty response", t.entity)
	}
	c.logger.Info().Str("id", rows[0].ID).Str("name", rows[0].Name).Msgf("%s created", t.entity)
	return &rows[0], nil
}

// deleteNamed refuses to delete rows still referenced from matches. A
// delete that returns no rows is reported as not found, which also covers
// rows hidden by row level security.
func (c *PostgRESTClient) deleteNamed(ctx context.Context, t named, id string) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set(t.refColumn, eq(id))
	q.Set("limit", "1")
	_, refs, err := fetch[idRow](ctx, c, request{
		method: fasthttp.MethodGet,
		table:  t.refTable,
		query:  q,
		prefer: []string{preferCount},
	})
	if err != nil {
		return fmt.Errorf("failed to count %s references: %w", t.entity, err)
	}
	if refs > 0 {
		return &domain.InUseError{Entity: t.entity, Count: refs}
	}

	q = url.Values{}
	q.Set("id", eq(id))
	q.Set("select", "id")
	rows, _, err := fetch[idRow](ctx, c, request{
		method: fasthttp.MethodDelete,
		table:  t.table,
		query:  q,
		prefer: []string{preferRepresentation},
	})
	if apiCode(err) == codeForeignKeyViolation {
		return &domain.InUseError{Entity: t.entity, Count: 1}
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", t.entity, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s %s: %w", t.entity, id, domain.ErrNotFound)
	}
	c.logger.Info().Str("id", id).Msgf("%s deleted", t.entity)
	return nil
}

func (c *PostgRESTClient) ListPlayers(ctx context.Context, q domain.ListQuery) (domain.PlayerPage, error) {
	rows, total, err := c.listNamed(ctx, players, q)
	if err != nil {
		return domain.PlayerPage{}, err
	}
	page := domain.PlayerPage{Players: make([]domain.Player, len(rows)), Total: total}
	for i, r := range rows {
		page.Players[i] = domain.Player{ID: r.ID, Name: r.Name, CreatedAt: parseTime(r.CreatedAt)}
	}
	return page, nil
}

func (c *PostgRESTClient) CreatePlayer(ctx context.Context, name string) (*domain.Player, error) {
	r, err := c.createNamed(ctx, players, name)
	if err != nil {
		return nil, err
	}
	return &domain.Player{ID: r.ID, Name: r.Name, CreatedAt: parseTime(r.CreatedAt)}, nil
}

func (c *PostgRESTClient) DeletePlayer(ctx context.Context, id string) error {
	return c.deleteNamed(ctx, players, id)
}

func (c *PostgRESTClient) ListGames(ctx context.Context, q domain.ListQuery) (domain.GamePage, error) {
	rows, total, err := c.listNamed(ctx, games, q)
	if err != nil {
		return domain.GamePage{}, err
	}
	page := domain.GamePage{Games: make([]domain.Game, len(rows)), Total: total}
	for i, r := range rows {
		page.Games[i] = domain.Game{ID: r.ID, Name: r.Name, CreatedAt: parseTime(r.CreatedAt)}
	}
	return page, nil
}

func (c *PostgRESTClient) CreateGame(ctx context.Context, name string) (*domain.Game, error) {
	r, err := c.createNamed(ctx, games, name)
	if err != nil {
		return nil, err
	}
	return &domain.Game{ID: r.ID, Name: r.Name, CreatedAt: parseTime(r.CreatedAt)}, nil
}

func (c *PostgRESTClient) DeleteGame(ctx context.Context, id string) error {
	return c.deleteNamed(ctx, games, id)
}

func apiCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
