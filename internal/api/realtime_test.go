package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"friends-scoreboard/internal/events"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealtimeURL(t *testing.T) {
	got, err := RealtimeURL("https://abc.supabase.co/rest/v1", "key")
	require.NoError(t, err)
	assert.Equal(t, "wss://abc.supabase.co/realtime/v1/websocket?apikey=key&vsn=1.0.0", got)

	got, err = RealtimeURL("http://localhost:54321/rest/v1/", "k")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:54321/realtime/v1/websocket?apikey=k&vsn=1.0.0", got)

	_, err = RealtimeURL("ftp://x", "k")
	assert.Error(t, err)
}

func TestRealtime_JoinsAndPublishesInserts(t *testing.T) {
	joined := make(chan phxMessage, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join phxMessage
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joined <- join

		conn.WriteJSON(map[string]any{
			"topic":   realtimeTopic,
			"event":   "postgres_changes",
			"payload": map[string]any{"data": map[string]any{"table": "matches", "type": "INSERT"}},
			"ref":     nil,
		})
		conn.WriteJSON(map[string]any{"topic": realtimeTopic, "event": "postgres_changes", "payload": "garbage"})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rt := &Realtime{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http"),
		apiKey: "key",
		dialer: websocket.DefaultDialer,
		logger: zerolog.Nop(),
	}

	bus := events.NewBus(zerolog.Nop())
	changed := make(chan events.TablesChanged, 4)
	defer events.Subscribe(bus, func(ev events.TablesChanged) { changed <- ev })()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- rt.Listen(ctx, bus) }()

	select {
	case join := <-joined:
		assert.Equal(t, "phx_join", join.Event)
		assert.Equal(t, realtimeTopic, join.Topic)
		var payload struct {
			Config struct {
				PostgresChanges []postgresChange `json:"postgres_changes"`
			} `json:"config"`
		}
		require.NoError(t, json.Unmarshal(join.Payload, &payload))
		assert.Len(t, payload.Config.PostgresChanges, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("no join received")
	}

	select {
	case ev := <-changed:
		assert.Equal(t, events.TablesChanged{Table: "matches", Source: "realtime"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("no change published")
	}

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
