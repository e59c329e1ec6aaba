package services

import "errors"

var (
	// ErrLocked means setup has been disabled by deployment configuration.
	ErrLocked = errors.New("setup is locked")
	// ErrAlreadyInitialized means the settings singleton already exists.
	ErrAlreadyInitialized = errors.New("instance is already initialized")
	// ErrNotInitialized is returned by settings reads before setup has run.
	ErrNotInitialized = errors.New("instance is not initialized")

	ErrMissingEmail    = errors.New("email is required")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidSettings = errors.New("invalid settings")

	ErrInvalidEmail  = errors.New("invalid email address")
	ErrDuplicateUser = errors.New("username or email already in use")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidRole   = errors.New("invalid role")
)
