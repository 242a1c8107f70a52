package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("name already exists")
	ErrInvalidName   = errors.New("name must not be empty")
	ErrInUse         = errors.New("still referenced by matches")
	ErrValidation    = errors.New("validation failed")
)

// InUseError reports how many rows still reference the entity a caller
// tried to delete.
type InUseError struct {
	Entity string
	Count  int
}

func (e *InUseError) Error() string {
	noun := "records"
	if e.Count == 1 {
		noun = "record"
	}
	return fmt.Sprintf("cannot remove %s: %d %s in matches", e.Entity, e.Count, noun)
}

func (e *InUseError) Unwrap() error { return ErrInUse }

func Invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// NormalizeName trims a player or game name and rejects blanks.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
