package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"friends-scoreboard/internal/config"
	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/events"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const realtimeTopic = "realtime:scoreboard"

var watchedTables = []string{"matches", "match_scores"}

// Realtime subscribes to INSERTs on the match tables over the Supabase
// realtime websocket and republishes them as TablesChanged.
type Realtime struct {
	url    string
	apiKey string
	dialer *websocket.Dialer
	logger zerolog.Logger
}

type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
}

type postgresChange struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type changePayload struct {
	Data struct {
		Table string `json:"table"`
		Type  string `json:"type"`
	} `json:"data"`
}

func NewRealtime(cfg *config.Config, logger zerolog.Logger) (*Realtime, error) {
	wsURL, err := RealtimeURL(cfg.PostgRESTURL, cfg.PostgRESTKey)
	if err != nil {
		return nil, err
	}
	return &Realtime{
		url:    wsURL,
		apiKey: cfg.PostgRESTKey,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}, nil
}

// RealtimeURL derives the realtime websocket endpoint from the REST base
// URL, e.g. https://x.supabase.co/rest/v1 becomes
// wss://x.supabase.co/realtime/v1/websocket.
func RealtimeURL(restURL, apiKey string) (string, error) {
	u, err := url.Parse(restURL)
	if err != nil {
		return "", fmt.Errorf("invalid postgrest url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid postgrest url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/rest/v1") + "/realtime/v1/websocket"
	u.RawQuery = url.Values{"apikey": {apiKey}, "vsn": {"1.0.0"}}.Encode()
	return u.String(), nil
}

// Listen keeps a realtime subscription open until ctx is done, reconnecting
// with exponential backoff.
func (r *Realtime) Listen(ctx context.Context, bus *events.Bus) error {
	backoff := time.Second
	for {
		started := time.Now()
		err := r.session(ctx, bus)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > constants.RealtimeMaxBackoff {
			backoff = time.Second
		}
		r.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("realtime connection lost")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, constants.RealtimeMaxBackoff)
	}
}

func (r *Realtime) session(ctx context.Context, bus *events.Bus) error {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial realtime: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteJSON(r.joinMessage()); err != nil {
		return fmt.Errorf("failed to join channel: %w", err)
	}
	r.logger.Info().Str("topic", realtimeTopic).Msg("realtime channel joined")

	readErr := make(chan error, 1)
	go func() {
		for {
			var msg phxMessage
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			r.handle(bus, msg)
		}
	}()

	ticker := time.NewTicker(constants.RealtimeHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case err := <-readErr:
			return err
		case <-ticker.C:
			if err := conn.WriteJSON(heartbeat()); err != nil {
				return fmt.Errorf("failed to send heartbeat: %w", err)
			}
		}
	}
}

func (r *Realtime) joinMessage() map[string]any {
	changes := make([]postgresChange, 0, len(watchedTables))
	for _, t := range watchedTables {
		changes = append(changes, postgresChange{Event: "INSERT", Schema: "public", Table: t})
	}
	return map[string]any{
		"topic": realtimeTopic,
		"event": "phx_join",
		"payload": map[string]any{
			"config":       map[string]any{"postgres_changes": changes},
			"access_token": r.apiKey,
		},
		"ref": newRef(),
	}
}

func heartbeat() map[string]any {
	return map[string]any{
		"topic":   "phoenix",
		"event":   "heartbeat",
		"payload": map[string]any{},
		"ref":     newRef(),
	}
}

func (r *Realtime) handle(bus *events.Bus, msg phxMessage) {
	switch msg.Event {
	case "postgres_changes":
		var p changePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			r.logger.Debug().Err(err).Msg("ignoring malformed realtime payload")
			return
		}
		if p.Data.Table == "" {
			return
		}
		events.Publish(bus, events.TablesChanged{Table: p.Data.Table, Source: "realtime"})
	case "phx_error", "phx_close":
		r.logger.Warn().Str("event", msg.Event).Str("payload", string(msg.Payload)).Msg("realtime channel event")
	}
}

func newRef() string {
	ref, err := gonanoid.New(8)
	if err != nil {
		return fmt.Sprint(time.Now().UnixNano())
	}
	return ref
}
