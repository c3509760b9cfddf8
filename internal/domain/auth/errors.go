package auth

import "errors"

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrMissingActor     = errors.New("token does not identify a user")
	ErrInsufficientRole = errors.New("role is not allowed to perform this action")
	ErrUnknownRole      = errors.New("unknown role")
)
