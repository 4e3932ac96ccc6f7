package auth

import "errors"

var (
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("invalid role, must be 'user' or 'bot'")
	ErrUserNotFound       = errors.New("user not found")
)
