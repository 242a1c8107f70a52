package server

import (
	"context"
	"errors"

	"friends-scoreboard/internal/domain"
	"friends-scoreboard/internal/leaderboard"

	"connectrpc.com/connect"
)

func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	return connect.NewError(codeFor(err), err)
}

func codeFor(err error) connect.Code {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, domain.ErrDuplicateName):
		return connect.CodeAlreadyExists
	case errors.Is(err, domain.ErrInUse):
		return connect.CodeFailedPrecondition
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, leaderboard.ErrInvalidRange):
		return connect.CodeInvalidArgument
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	}
	return connect.CodeInternal
}
