// Package prefs persists the last-used ranking and feed filters. Services
// receive a *Store and read a Prefs value from it; nothing here is global.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"friends-scoreboard/internal/config"
	"friends-scoreboard/internal/constants"
	"friends-scoreboard/internal/leaderboard"

	"github.com/rs/zerolog"
)

var AllowedPageSizes = []int{5, 10, 25, 50, 100}

type Prefs struct {
	Range        leaderboard.RangeKey `json:"range"`
	CustomFrom   string               `json:"custom_from,omitempty"`
	CustomTo     string               `json:"custom_to,omitempty"`
	GameID       string               `json:"game_id,omitempty"`
	PageSize     int                  `json:"page_size"`
	FeedPageSize int                  `json:"feed_page_size"`
	LastGameID   string               `json:"last_game_id,omitempty"`
}

func Defaults() Prefs {
	return Prefs{
		Range:        leaderboard.RangeTotal,
		PageSize:     constants.DefaultPageSize,
		FeedPageSize: constants.DefaultFeedPageSize,
	}
}

// Sanitize replaces invalid fields with their defaults.
func (p Prefs) Sanitize() Prefs {
	d := Defaults()
	if !p.Range.Valid() {
		p.Range = d.Range
	}
	if !allowedPageSize(p.PageSize) {
		p.PageSize = d.PageSize
	}
	if !allowedPageSize(p.FeedPageSize) {
		p.FeedPageSize = d.FeedPageSize
	}
	if p.Range != leaderboard.RangeCustom {
		p.CustomFrom, p.CustomTo = "", ""
	}
	return p
}

func allowedPageSize(n int) bool {
	for _, s := range AllowedPageSizes {
		if n == s {
			return true
		}
	}
	return false
}

// Store keeps one Prefs value in memory and mirrors it to a JSON file.
// An empty path keeps preferences in memory only.
type Store struct {
	path   string
	mu     sync.RWMutex
	cur    Prefs
	logger zerolog.Logger
}

func NewStore(cfg *config.Config, logger zerolog.Logger) *Store {
	return Open(cfg.PrefsPath, logger)
}

func Open(path string, logger zerolog.Logger) *Store {
	s := &Store{path: path, cur: Defaults(), logger: logger}
	if path == "" {
		return s
	}

	p, err := readFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug().Str("path", path).Msg("no saved preferences, using defaults")
	case err != nil:
		logger.Warn().Err(err).Str("path", path).Msg("unreadable preferences, using defaults")
	default:
		s.cur = p.Sanitize()
	}
	return s
}

func (s *Store) Get() Prefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Save sanitizes p, keeps it and writes it to disk.
func (s *Store) Save(p Prefs) (Prefs, error) {
	p = p.Sanitize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = p
	if s.path == "" {
		return p, nil
	}
	if err := writeFile(s.path, p); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("failed to save preferences")
		return p, fmt.Errorf("failed to save preferences: %w", err)
	}
	return p, nil
}

// Update applies fn to the current value and saves the result.
func (s *Store) Update(fn func(*Prefs)) (Prefs, error) {
	p := s.Get()
	fn(&p)
	return s.Save(p)
}

func readFile(path string) (Prefs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Prefs{}, err
	}
	p := Defaults()
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prefs{}, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return p, nil
}

func writeFile(path string, p Prefs) error {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".prefs-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
