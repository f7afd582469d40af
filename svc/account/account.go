package account

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/twofactor/pkg/logger"
)

const MinPasswordLength = 8

// Storage keeps users and their bcrypt password hashes.
type Storage interface {
	CreateUser(ctx context.Context, id uuid.UUID, email string, passwordHash []byte) error
	// GetPasswordHash returns ErrUserNotFound for unknown users.
	GetPasswordHash(ctx context.Context, userID uuid.UUID) ([]byte, error)
}

// Service registers users and checks their passwords.
type Service struct {
	storage    Storage
	bcryptCost int
	log        *slog.Logger
}

type Option func(*Service)

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(storage Storage, opts ...Option) *Service {
	s := &Service{
		storage:    storage,
		bcryptCost: bcrypt.DefaultCost,
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser registers a user and returns the new ID.
func (s *Service) CreateUser(ctx context.Context, email, password string) (uuid.UUID, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return uuid.Nil, errors.Join(ErrInvalidEmail, err)
	}
	if len(password) < MinPasswordLength {
		return uuid.Nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return uuid.Nil, errors.Join(ErrHashingFailed, err)
	}

	id := uuid.New()
	if err := s.storage.CreateUser(ctx, id, email, hash); err != nil {
		return uuid.Nil, err
	}
	s.log.InfoContext(ctx, "user created", logger.UserID(id))
	return id, nil
}

// VerifyPassword reports whether password matches the stored hash. Unknown
// users are a mismatch, not an error.
func (s *Service) VerifyPassword(ctx context.Context, userID uuid.UUID, password string) (bool, error) {
	hash, err := s.storage.GetPasswordHash(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		s.log.WarnContext(ctx, "password check for unknown user", logger.UserID(userID))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = bcrypt.CompareHashAndPassword(hash, []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	}
	return false, errors.Join(ErrInvalidHash, err)
}
