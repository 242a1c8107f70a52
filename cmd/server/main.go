package main

import (
	"context"
	"fmt"
	"net/http"

	"friends-scoreboard/internal/config"
	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/events"
	fxmodules "friends-scoreboard/internal/fx"
	"friends-scoreboard/internal/kafka"
	"friends-scoreboard/internal/live"
	"friends-scoreboard/internal/middleware"
	"friends-scoreboard/internal/server"
	"friends-scoreboard/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runListener),
		fx.Invoke(runServer),
	).Run()
}

type listenerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Listener  service.Listener `optional:"true"`
	Bus       *events.Bus
	Logger    zerolog.Logger
}

// runListener forwards changes made by other clients of the backend until
// the application stops.
func runListener(p listenerParams) {
	if p.Listener == nil {
		p.Logger.Info().Msg("backend has no change listener, live updates cover local writes only")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := p.Listener.Listen(ctx, p.Bus); err != nil {
					p.Logger.Error().Err(err).Msg("change listener stopped")
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func newRouter(scoreboard *server.ScoreboardServer, hub *live.Hub, logger zerolog.Logger) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(c.Handler)
	r.Use(middleware.RequestID(logger))

	path, handler := scoreboard.Handler()
	r.Mount(path, handler)
	r.Get("/live", hub.ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","live_clients":%d}`, hub.Clients())
	})
	return r
}

func runServer(
	lc fx.Lifecycle,
	scoreboard *server.ScoreboardServer,
	hub *live.Hub,
	producer *kafka.Producer,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: newRouter(scoreboard, hub, logger),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().
					Str("addr", srv.Addr).
					Str("backend", string(cfg.Backend)).
					Bool("kafka", producer.Enabled()).
					Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
