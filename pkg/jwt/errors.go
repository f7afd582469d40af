package jwt

import "errors"

var (
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrInvalidSubject    = errors.New("jwt: subject is not a user id")
	ErrMissingToken      = errors.New("jwt: missing bearer token")
)
