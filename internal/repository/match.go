package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"friends-scoreboard/internal/domain"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *MatchRepository) ResultFeed(ctx context.Context, gameID string) ([]domain.MatchResultRecord, error) {
	query := `
		SELECT ms.match_id, ms.player_id, p.name, ms.is_winner, m.played_at, m.game_id
		FROM match_scores ms
		JOIN matches m ON m.id = ms.match_id
		LEFT JOIN players p ON p.id = ms.player_id`
	var args []any
	if gameID != "" {
		query += " WHERE m.game_id = ?"
		args = append(args, gameID)
	}
	query += " ORDER BY m.played_at, ms.rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("game_id", gameID).Msg("failed to query result feed")
		return nil, fmt.Errorf("failed to query result feed: %w", err)
	}
	defer rows.Close()

	var records []domain.MatchResultRecord
	for rows.Next() {
		var rec domain.MatchResultRecord
		var name sql.NullString
		var playedAt string
		if err := rows.Scan(&rec.MatchID, &rec.PlayerID, &name, &rec.IsWinner, &playedAt, &rec.GameID); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		rec.PlayerName = name.String
		rec.PlayedAt = parseTime(playedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug().Int("count", len(records)).Str("game_id", gameID).Msg("result feed loaded")
	return records, nil
}

func (r *MatchRepository) RecentMatches(ctx context.Context, q domain.FeedQuery) (domain.FeedPage, error) {
	var conds []string
	var args []any
	if q.GameID != "" {
		conds = append(conds, "m.game_id = ?")
		args = append(args, q.GameID)
	}
	if q.From != nil {
		conds = append(conds, "m.played_at >= ?")
		args = append(args, formatTime(*q.From))
	}
	if q.To != nil {
		conds = append(conds, "m.played_at <= ?")
		args = append(args, formatTime(*q.To))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var page domain.FeedPage
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches m"+where, args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("failed to count matches: %w", err)
	}

	query := `
		SELECT m.id, m.game_id, COALESCE(g.name, ''), m.played_at, m.notes, m.day_seq
		FROM matches m
		LEFT JOIN games g ON g.id = m.game_id` + where + `
		ORDER BY m.played_at DESC, m.rowid DESC`
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query recent matches")
		return page, fmt.Errorf("failed to query recent matches: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return page, err
		}
		index[m.ID] = len(page.Matches)
		page.Matches = append(page.Matches, *m)
	}
	if err := rows.Err(); err != nil {
		return page, err
	}
	if len(page.Matches) == 0 {
		return page, nil
	}

	ids := make([]any, 0, len(page.Matches))
	for _, m := range page.Matches {
		ids = append(ids, m.ID)
	}
	scores, err := r.scores(ctx, r.db, ids...)
	if err != nil {
		return page, err
	}
	for _, s := range scores {
		i := index[s.MatchID]
		page.Matches[i].Scores = append(page.Matches[i].Scores, s)
	}
	return page, nil
}

func (r *MatchRepository) LastMatchParticipants(ctx context.Context, gameID string) ([]string, error) {
	var matchID string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM matches
		WHERE game_id = ?
		ORDER BY played_at DESC, rowid DESC
		LIMIT 1`, gameID).Scan(&matchID)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find last match: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT player_id FROM match_scores WHERE match_id = ? ORDER BY rowid", matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load last participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MatchRepository) RecordMatch(ctx context.Context, nm domain.NewMatch) (*domain.Match, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	matchID := uuid.NewString()
	playedAt := formatTime(nm.PlayedAt)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, game_id, played_at, notes, created_at)
		VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))`,
		matchID, nm.GameID, playedAt, nm.Notes)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("game %s: %w", nm.GameID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert match: %w", err)
	}

	for _, p := range nm.Participants {
		scoreID, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate score id: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_scores (id, match_id, player_id, points, is_winner)
			VALUES (?, ?, ?, ?, ?)`,
			scoreID, matchID, p.PlayerID, domain.PointsFor(p.IsWinner), p.IsWinner)
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("player %s: %w", p.PlayerID, domain.ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, domain.Invalid("player " + p.PlayerID + " listed twice")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert score: %w", err)
		}
	}

	row := tx.QueryRowContext(ctx, `
		SELECT m.id, m.game_id, COALESCE(g.name, ''), m.played_at, m.notes, m.day_seq
		FROM matches m
		LEFT JOIN games g ON g.id = m.game_id
		WHERE m.id = ?`, matchID)
	match, err := scanMatch(row)
	if err != nil {
		return nil, err
	}
	if match.Scores, err = r.scores(ctx, tx, matchID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match: %w", err)
	}

	r.logger.Info().
		Str("match_id", match.ID).
		Str("game_id", match.GameID).
		Int("participants", len(match.Scores)).
		Msg("match recorded")
	return match, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMatch(s scanner) (*domain.Match, error) {
	var m domain.Match
	var playedAt string
	var daySeq sql.NullInt64
	if err := s.Scan(&m.ID, &m.GameID, &m.GameName, &playedAt, &m.Notes, &daySeq); err != nil {
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	m.PlayedAt = parseTime(playedAt)
	if daySeq.Valid {
		seq := int(daySeq.Int64)
		m.DaySeq = &seq
	}
	return &m, nil
}

func (r *MatchRepository) scores(ctx context.Context, q queryer, matchIDs ...any) ([]domain.MatchScore, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT ms.id, ms.match_id, ms.player_id, COALESCE(p.name, ''), ms.is_winner, ms.points
		FROM match_scores ms
		LEFT JOIN players p ON p.id = ms.player_id
		WHERE ms.match_id IN (`+placeholders(len(matchIDs))+`)
		ORDER BY ms.rowid`, matchIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.MatchScore
	for rows.Next() {
		var s domain.MatchScore
		if err := rows.Scan(&s.ID, &s.MatchID, &s.PlayerID, &s.PlayerName, &s.IsWinner, &s.Points); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
