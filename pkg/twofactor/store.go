package twofactor

import (
	"context"

	"github.com/google/uuid"
)

// Store persists credentials. Every mutating call is conditional so concurrent
// requests for the same user cannot both succeed.
type Store interface {
	// Get returns ErrCredentialNotFound when the user never enrolled.
	Get(ctx context.Context, userID uuid.UUID) (*Credential, error)

	// Enable stores cred as enabled. ErrConflict if the user already has an
	// enabled credential.
	Enable(ctx context.Context, cred *Credential) error

	// UpdateBackupCodes replaces the stored codes only if the credential is
	// enabled and still at expectedVersion, otherwise ErrConflict.
	UpdateBackupCodes(ctx context.Context, userID uuid.UUID, expectedVersion int64, codes [][]byte) error

	// Disable clears the secret and codes of an enabled credential.
	// ErrCredentialNotFound if nothing is enabled.
	Disable(ctx context.Context, userID uuid.UUID) error
}

// PasswordVerifier re-checks the account password before destructive changes.
// It returns false for a wrong password and an error only when the check
// could not be performed.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, userID uuid.UUID, password string) (bool, error)
}

// Limiter bounds verification attempts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LimiterFunc adapts a function to Limiter.
type LimiterFunc func(ctx context.Context, key string) (bool, error)

func (f LimiterFunc) Allow(ctx context.Context, key string) (bool, error) {
	return f(ctx, key)
}

// Cipher seals secrets at rest. *secrets.Cipher satisfies it.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}
