package core

import "errors"

// Error taxonomy. Call sites wrap these with context; match with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrCapacity            = errors.New("capacity reached")
	ErrInsufficientPlayers = errors.New("insufficient players")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAlreadyExists       = errors.New("already exists")
	ErrTimeout             = errors.New("timeout")
)

// ErrorKind returns a stable code for err, or "internal" when it matches no sentinel.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrInsufficientPlayers):
		return "insufficient_players"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	}
	return "internal"
}
