package api

import (
	"context"
	"errors"
	"fmt"

	"achievements.party/internal/achievements"
	"achievements.party/internal/protocol"
	"achievements.party/internal/session"
	"achievements.party/internal/settings"
)

var (
	ErrUnknownOp = errors.New("unknown op")
	ErrBadArgs   = errors.New("bad arguments")

	errMissingParameter = fmt.Errorf("%w: missing required parameter", achievements.ErrValidation)
)

// CodeFor maps an error to its wire code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownOp):
		return protocol.ErrUnknownOp
	case errors.Is(err, ErrBadArgs):
		return protocol.ErrBadRequest
	case errors.Is(err, achievements.ErrValidation),
		errors.Is(err, settings.ErrInvalid),
		errors.Is(err, settings.ErrUnknownKey):
		return protocol.ErrValidation
	case errors.Is(err, achievements.ErrDuplicate):
		return protocol.ErrDuplicate
	case errors.Is(err, achievements.ErrNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, achievements.ErrLocked):
		return protocol.ErrLocked
	case errors.Is(err, achievements.ErrFormat):
		return protocol.ErrFormat
	case errors.Is(err, achievements.ErrDisabled):
		return protocol.ErrDisabled
	case errors.Is(err, achievements.ErrConfirmationRequired):
		return protocol.ErrConfirm
	case errors.Is(err, achievements.ErrForbidden),
		errors.Is(err, settings.ErrReadOnly):
		return protocol.ErrNoPermission
	case errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrUnavailable
	default:
		return protocol.ErrInternal
	}
}
