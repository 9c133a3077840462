package domain

import "errors"

// Domain errors
var (
	ErrStarNotFound       = errors.New("star not found")
	ErrStarOutOfRange     = errors.New("star out of pickup range")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnknownAchievement = errors.New("unknown achievement")
	ErrUsernameRequired   = errors.New("username is required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrStarNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrUserNotFound)
}
