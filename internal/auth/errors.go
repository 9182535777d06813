package auth

import "github.com/pkg/errors"

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrMissingClaims        = errors.New("token lacks user_id")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)
