package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"friends-scoreboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
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

type namedRow struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

func (s *Store) listNamed(ctx context.Context, t named, q domain.ListQuery) ([]namedRow, int, error) {
	where := ""
	var args []any
	if q.Search != "" {
		where = " WHERE name ILIKE $1"
		args = append(args, likePattern(q.Search))
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+t.table+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", t.table, err)
	}

	query := "SELECT id::text, name, created_at FROM " + t.table + where + " ORDER BY lower(name)"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", t.table, err)
	}
	defer rows.Close()

	var out []namedRow
	for rows.Next() {
		var row namedRow
		if err := rows.Scan(&row.ID, &row.Name, &row.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s: %w", t.entity, err)
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

func (s *Store) createNamed(ctx context.Context, t named, name string) (*namedRow, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	row := &namedRow{ID: uuid.NewString(), Name: name}
	err = s.pool.QueryRow(ctx,
		"INSERT INTO "+t.table+" (id, name) VALUES ($1, $2) RETURNING created_at",
		row.ID, row.Name).Scan(&row.CreatedAt)
	if pgCode(err) == codeUniqueViolation {
		return nil, fmt.Errorf("%s %q: %w", t.entity, name, domain.ErrDuplicateName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", t.entity, err)
	}
	s.logger.Info().Str("id", row.ID).Str("name", row.Name).Msgf("%s created", t.entity)
	return row, nil
}

func (s *Store) deleteNamed(ctx context.Context, t named, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %s: %w", t.entity, id, domain.ErrNotFound)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var refs int
	err = tx.QueryRow(ctx, "SELECT COUNT(*) FROM "+t.refTable+" WHERE "+t.refColumn+" = $1", id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count %s references: %w", t.entity, err)
	}
	if refs > 0 {
		return &domain.InUseError{Entity: t.entity, Count: refs}
	}

	tag, err := tx.Exec(ctx, "DELETE FROM "+t.table+" WHERE id = $1", id)
	if pgCode(err) == codeForeignKeyViolation {
		return &domain.InUseError{Entity: t.entity, Count: 1}
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", t.entity, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", t.entity, id, domain.ErrNotFound)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.logger.Info().Str("id", id).Msgf("%s deleted", t.entity)
	return nil
}

func (s *Store) ListPlayers(ctx context.Context, q domain.ListQuery) (domain.PlayerPage, error) {
	rows, total, err := s.listNamed(ctx, players, q)
	if err != nil {
		return domain.PlayerPage{}, err
	}
	page := domain.PlayerPage{Players: make([]domain.Player, len(rows)), Total: total}
	for i, row := range rows {
		page.Players[i] = domain.Player{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
	}
	return page, nil
}

func (s *Store) CreatePlayer(ctx context.Context, name string) (*domain.Player, error) {
	row, err := s.createNamed(ctx, players, name)
	if err != nil {
		return nil, err
	}
	return &domain.Player{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}, nil
}

func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	return s.deleteNamed(ctx, players, id)
}

func (s *Store) ListGames(ctx context.Context, q domain.ListQuery) (domain.GamePage, error) {
	rows, total, err := s.listNamed(ctx, games, q)
	if err != nil {
		return domain.GamePage{}, err
	}
	page := domain.GamePage{Games: make([]domain.Game, len(rows)), Total: total}
	for i, row := range rows {
		page.Games[i] = domain.Game{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}
	}
	return page, nil
}

func (s *Store) CreateGame(ctx context.Context, name string) (*domain.Game, error) {
	row, err := s.createNamed(ctx, games, name)
	if err != nil {
		return nil, err
	}
	return &domain.Game{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt}, nil
}

func (s *Store) DeleteGame(ctx context.Context, id string) error {
	return s.deleteNamed(ctx, games, id)
}

func (s *Store) ResultFeed(ctx context.Context, gameID string) ([]domain.MatchResultRecord, error) {
	query := `
		SELECT ms.match_id::text, ms.player_id::text, COALESCE(p.name, ''), ms.is_winner, m.played_at, m.game_id::text
		FROM match_scores ms
		JOIN matches m ON m.id = ms.match_id
		LEFT JOIN players p ON p.id = ms.player_id`
	var args []any
	if gameID != "" {
		query += " WHERE m.game_id::text = $1"
		args = append(args, gameID)
	}
	query += " ORDER BY m.played_at, ms.seq"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Str("game_id", gameID).Msg("failed to query result feed")
		return nil, fmt.Errorf("failed to query result feed: %w", err)
	}
	defer rows.Close()

	var records []domain.MatchResultRecord
	for rows.Next() {
		var rec domain.MatchResultRecord
		if err := rows.Scan(&rec.MatchID, &rec.PlayerID, &rec.PlayerName, &rec.IsWinner, &rec.PlayedAt, &rec.GameID); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) RecentMatches(ctx context.Context, q domain.FeedQuery) (domain.FeedPage, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if q.GameID != "" {
		add("m.game_id::text = $%d", q.GameID)
	}
	if q.From != nil {
		add("m.played_at >= $%d", *q.From)
	}
	if q.To != nil {
		add("m.played_at <= $%d", *q.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var page domain.FeedPage
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM matches m"+where, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count matches: %w", err)
	}

	query := matchSelect + where + " ORDER BY m.played_at DESC, m.created_at DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query recent matches")
		return page, fmt.Errorf("failed to query recent matches: %w", err)
	}
	index := make(map[string]int)
	ids := make([]string, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return page, err
		}
		index[m.ID] = len(page.Matches)
		ids = append(ids, m.ID)
		page.Matches = append(page.Matches, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return page, err
	}
	if len(ids) == 0 {
		return page, nil
	}

	scores, err := s.scores(ctx, s.pool, ids)
	if err != nil {
		return page, err
	}
	for _, sc := range scores {
		i := index[sc.MatchID]
		page.Matches[i].Scores = append(page.Matches[i].Scores, sc)
	}
	return page, nil
}

func (s *Store) LastMatchParticipants(ctx context.Context, gameID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ms.player_id::text
		FROM match_scores ms
		WHERE ms.match_id = (
			SELECT id FROM matches
			WHERE game_id::text = $1
			ORDER BY played_at DESC, created_at DESC
			LIMIT 1
		)
		ORDER BY ms.seq`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last participants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan last participants: %w", err)
	}
	return ids, nil
}

func (s *Store) RecordMatch(ctx context.Context, nm domain.NewMatch) (*domain.Match, error) {
	if _, err := uuid.Parse(nm.GameID); err != nil {
		return nil, fmt.Errorf("game %s: %w", nm.GameID, domain.ErrNotFound)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	matchID := uuid.NewString()
	_, err = tx.Exec(ctx,
		"INSERT INTO matches (id, game_id, played_at, notes) VALUES ($1, $2, $3, $4)",
		matchID, nm.GameID, nm.PlayedAt, nm.Notes)
	if pgCode(err) == codeForeignKeyViolation {
		return nil, fmt.Errorf("game %s: %w", nm.GameID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert match: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range nm.Participants {
		if _, err := uuid.Parse(p.PlayerID); err != nil {
			return nil, fmt.Errorf("player %s: %w", p.PlayerID, domain.ErrNotFound)
		}
		scoreID, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate score id: %w", err)
		}
		batch.Queue(
			"INSERT INTO match_scores (id, match_id, player_id, points, is_winner) VALUES ($1, $2, $3, $4, $5)",
			scoreID, matchID, p.PlayerID, domain.PointsFor(p.IsWinner), p.IsWinner)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		switch pgCode(err) {
		case codeForeignKeyViolation:
			return nil, fmt.Errorf("participant: %w", domain.ErrNotFound)
		case codeUniqueViolation:
			return nil, domain.Invalid("participant listed twice")
		}
		return nil, fmt.Errorf("failed to insert scores: %w", err)
	}

	match, err := scanMatch(tx.QueryRow(ctx, matchSelect+" WHERE m.id = $1", matchID))
	if err != nil {
		return nil, err
	}
	if match.Scores, err = s.scores(ctx, tx, []string{matchID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit match: %w", err)
	}

	s.logger.Info().
		Str("match_id", match.ID).
		Str("game_id", match.GameID).
		Int("participants", len(match.Scores)).
		Msg("match recorded")
	return match, nil
}

const matchSelect = `
	SELECT m.id::text, m.game_id::text, COALESCE(g.name, ''), m.played_at, m.notes, m.day_seq
	FROM matches m
	LEFT JOIN games g ON g.id = m.game_id`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	var daySeq *int32
	if err := row.Scan(&m.ID, &m.GameID, &m.GameName, &m.PlayedAt, &m.Notes, &daySeq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	if daySeq != nil {
		seq := int(*daySeq)
		m.DaySeq = &seq
	}
	return &m, nil
}

func (s *Store) scores(ctx context.Context, q querier, matchIDs []string) ([]domain.MatchScore, error) {
	rows, err := q.Query(ctx, `
		SELECT ms.id, ms.match_id::text, ms.player_id::text, COALESCE(p.name, ''), ms.is_winner, ms.points
		FROM match_scores ms
		LEFT JOIN players p ON p.id = ms.player_id
		WHERE ms.match_id::text = ANY($1)
		ORDER BY ms.seq`, matchIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	defer rows.Close()

	var out []domain.MatchScore
	for rows.Next() {
		var sc domain.MatchScore
		if err := rows.Scan(&sc.ID, &sc.MatchID, &sc.PlayerID, &sc.PlayerName, &sc.IsWinner, &sc.Points); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}
