package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
	"github.com/dmitrymomot/twofactor/svc/account"
)

var _ twofactor.PasswordVerifier = (*account.Service)(nil)

type failingStorage struct{ err error }

func (f failingStorage) CreateUser(context.Context, uuid.UUID, string, []byte) error { return f.err }
func (f failingStorage) GetPasswordHash(context.Context, uuid.UUID) ([]byte, error) {
	return nil, f.err
}

func newService(t *testing.T) (*account.Service, *account.MemoryStore) {
	t.Helper()
	store := account.NewMemoryStore()
	return account.NewService(store, account.WithBcryptCost(bcrypt.MinCost)), store
}

func TestCreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t)

	id, err := svc.CreateUser(ctx, " Alice@Example.com ", "s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	hash, err := store.GetPasswordHash(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", string(hash))

	_, err = svc.CreateUser(ctx, "alice@example.com", "another-password")
	assert.ErrorIs(t, err, account.ErrEmailTaken)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"invalid email", "not-an-email", "s3cret-password", account.ErrInvalidEmail},
		{"short password", "bob@example.com", "short", account.ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreateUser(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newService(t)

	id, err := svc.CreateUser(ctx, "alice@example.com", "s3cret-password")
	require.NoError(t, err)

	ok, err := svc.VerifyPassword(ctx, id, "s3cret-password")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyPassword(ctx, id, "wrong-password")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.VerifyPassword(ctx, uuid.New(), "s3cret-password")
	require.NoError(t, err)
	assert.False(t, ok)

	broken := uuid.New()
	require.NoError(t, store.CreateUser(ctx, broken, "broken@example.com", []byte("not-bcrypt")))
	_, err = svc.VerifyPassword(ctx, broken, "anything")
	assert.ErrorIs(t, err, account.ErrInvalidHash)
}

func TestVerifyPasswordStorageError(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection refused")
	svc := account.NewService(failingStorage{err: boom})

	ok, err := svc.VerifyPassword(context.Background(), uuid.New(), "s3cret-password")
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}
