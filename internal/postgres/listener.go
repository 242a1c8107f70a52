package postgres

import (
	"context"
	"fmt"
	"time"

	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/events"

	"github.com/jackc/pgx/v5/pgconn"
)

const notifyChannel = "scoreboard_changes"

// Listen holds one pooled connection on LISTEN scoreboard_changes and
// republishes every notification as TablesChanged. The connection is
// re-acquired after failures until ctx is done.
func (s *Store) Listen(ctx context.Context, bus *events.Bus) error {
	for {
		err := s.listenOnce(ctx, bus)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn().Err(err).Dur("retry_in", constants.ListenRetryDelay).Msg("postgres listener interrupted")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(constants.ListenRetryDelay):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context, bus *events.Bus) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info().Str("channel", notifyChannel).Msg("listening for backend changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		publishNotification(bus, n)
	}
}

func publishNotification(bus *events.Bus, n *pgconn.Notification) {
	if n == nil || n.Channel != notifyChannel {
		return
	}
	events.Publish(bus, events.TablesChanged{Table: n.Payload, Source: "postgres"})
}
