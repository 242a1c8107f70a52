package fx

import (
	"context"
	"fmt"

	"friends-scoreboard/internal/api"
	"friends-scoreboard/internal/config"
	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/database"
	"friends-scoreboard/internal/events"
	"friends-scoreboard/internal/kafka"
	"friends-scoreboard/internal/live"
	"friends-scoreboard/internal/logger"
	"friends-scoreboard/internal/postgres"
	"friends-scoreboard/internal/prefs"
	"friends-scoreboard/internal/repository"
	"friends-scoreboard/internal/server"
	"friends-scoreboard/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Backends is the selected persistence backend and, when the backend can
// report changes made by other clients, its listener. Listener may be nil.
type Backends struct {
	fx.Out

	Backend  service.Backend
	Listener service.Listener
}

// ProvideBackend opens the backend named by cfg.Backend and closes it when
// the application stops.
func ProvideBackend(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (Backends, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		sqlDB, err := database.New(cfg.DBPath, logger)
		if err != nil {
			return Backends{}, err
		}
		lc.Append(fx.StopHook(func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
		}))
		return Backends{Backend: repository.NewStore(sqlDB, logger)}, nil

	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout)
		defer cancel()
		store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return Backends{}, err
		}
		lc.Append(fx.StopHook(store.Close))
		return Backends{Backend: store, Listener: store}, nil

	case config.BackendPostgREST:
		client := api.NewPostgRESTClient(cfg, logger)
		out := Backends{Backend: client}
		if cfg.RealtimeEnabled {
			rt, err := api.NewRealtime(cfg, logger)
			if err != nil {
				return Backends{}, err
			}
			out.Listener = rt
		}
		return out, nil
	}
	return Backends{}, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func ProvideRanker(s *service.LeaderboardService) live.Ranker {
	return s
}

func ProvideHub(lc fx.Lifecycle, ranker live.Ranker, bus *events.Bus, logger zerolog.Logger) *live.Hub {
	hub := live.NewHub(ranker, bus, logger)
	lc.Append(fx.StopHook(hub.Close))
	return hub
}

func ProvideProducer(lc fx.Lifecycle, cfg *config.Config, bus *events.Bus, logger zerolog.Logger) *kafka.Producer {
	p := kafka.NewProducer(cfg, logger)
	detach := p.Attach(bus)
	lc.Append(fx.StopHook(func() error {
		detach()
		return p.Close()
	}))
	return p
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(prefs.NewStore),
	fx.Provide(events.NewBus),
	fx.Provide(service.NewClock),
	// backend
	fx.Provide(ProvideBackend),
	// svc
	fx.Provide(service.NewLeaderboardService),
	fx.Provide(service.NewFeedService),
	fx.Provide(service.NewRosterService),
	fx.Provide(service.NewMatchService),
	// push
	fx.Provide(ProvideRanker),
	fx.Provide(ProvideHub),
	fx.Provide(ProvideProducer),
	// server
	fx.Provide(server.NewScoreboardServer),
)
