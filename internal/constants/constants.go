package constants

import "time"

const (
	BackendTimeout  = 10 * time.Second
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	PGMaxConns        = 10
	PGMinConns        = 2
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	SearchSuggestionLimit = 6
	PlayersPageSize       = 20
	DefaultPageSize       = 25
	DefaultFeedPageSize   = 10
	MaxPageSize           = 100
)

const (
	RealtimeHeartbeat  = 30 * time.Second
	RealtimeMaxBackoff = 30 * time.Second
	ListenRetryDelay   = 2 * time.Second
	LiveWriteTimeout   = 10 * time.Second
	LivePingInterval   = 30 * time.Second
	LivePongWait       = 60 * time.Second
	LiveSendBuffer     = 8
)
