package account

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email is already registered")
	ErrInvalidEmail  = errors.New("invalid email")
	ErrWeakPassword  = errors.New("password is too short")
	ErrInvalidHash   = errors.New("stored password hash is invalid")
	ErrHashingFailed = errors.New("failed to hash password")
)
