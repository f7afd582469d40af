package twofactor_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := twofactor.NewMemoryStore()
	userID := uuid.New()

	_, err := store.Get(ctx, userID)
	require.ErrorIs(t, err, twofactor.ErrCredentialNotFound)
	assert.ErrorIs(t, store.Disable(ctx, userID), twofactor.ErrCredentialNotFound)
	assert.ErrorIs(t, store.UpdateBackupCodes(ctx, userID, 0, nil), twofactor.ErrConflict)

	require.NoError(t, store.Enable(ctx, &twofactor.Credential{
		UserID:               userID,
		EncryptedSecret:      []byte("secret"),
		EncryptedBackupCodes: [][]byte{[]byte("a"), []byte("b")},
	}))

	cred, err := store.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, cred.Enabled)
	assert.NotNil(t, cred.EnabledAt)
	assert.Len(t, cred.EncryptedBackupCodes, 2)

	t.Run("enable twice conflicts", func(t *testing.T) {
		err := store.Enable(ctx, &twofactor.Credential{UserID: userID})
		assert.ErrorIs(t, err, twofactor.ErrConflict)
	})

	t.Run("returned credential is a copy", func(t *testing.T) {
		c, err := store.Get(ctx, userID)
		require.NoError(t, err)
		c.EncryptedBackupCodes[0][0] = 'x'
		again, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), again.EncryptedBackupCodes[0])
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		require.NoError(t, store.UpdateBackupCodes(ctx, userID, cred.Version, [][]byte{[]byte("b")}))
		err := store.UpdateBackupCodes(ctx, userID, cred.Version, [][]byte{})
		assert.ErrorIs(t, err, twofactor.ErrConflict)

		c, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, cred.Version+1, c.Version)
		assert.Len(t, c.EncryptedBackupCodes, 1)
	})

	t.Run("disable clears material", func(t *testing.T) {
		require.NoError(t, store.Disable(ctx, userID))
		c, err := store.Get(ctx, userID)
		require.NoError(t, err)
		assert.False(t, c.Enabled)
		assert.Empty(t, c.EncryptedSecret)
		assert.Empty(t, c.EncryptedBackupCodes)
		assert.ErrorIs(t, store.Disable(ctx, userID), twofactor.ErrCredentialNotFound)

		require.NoError(t, store.Enable(ctx, &twofactor.Credential{UserID: userID, EncryptedSecret: []byte("new")}))
	})
}
