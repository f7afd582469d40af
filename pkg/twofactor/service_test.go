package twofactor_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/backupcode"
	"github.com/dmitrymomot/twofactor/pkg/secrets"
	"github.com/dmitrymomot/twofactor/pkg/totp"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

const testPassword = "correct horse battery staple"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *twofactor.Service
	store     *twofactor.MemoryStore
	master    []byte
	passwords *mockPasswords
}

func newFixture(t *testing.T, opts ...twofactor.Option) *fixture {
	t.Helper()
	master, err := secrets.GenerateKey()
	require.NoError(t, err)
	f := &fixture{
		store:     twofactor.NewMemoryStore(),
		master:    master,
		passwords: &mockPasswords{},
	}
	f.svc = f.service(t, master, opts...)
	return f
}

// service builds a Service over the fixture's store with the given master key.
func (f *fixture) service(t *testing.T, master []byte, opts ...twofactor.Option) *twofactor.Service {
	t.Helper()
	secretCipher, err := secrets.NewCipher(master, secrets.PurposeTOTPSecret)
	require.NoError(t, err)
	codeCipher, err := secrets.NewCipher(master, secrets.PurposeBackupCode)
	require.NoError(t, err)
	codes, err := backupcode.NewManager(codeCipher)
	require.NoError(t, err)

	opts = append([]twofactor.Option{
		twofactor.WithValidator(totp.NewValidator(totp.WithClock(func() time.Time { return fixedNow }))),
		twofactor.WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	svc, err := twofactor.NewService("Example", twofactor.Deps{
		Store:     f.store,
		Secrets:   secretCipher,
		Codes:     codes,
		Passwords: f.passwords,
	}, opts...)
	require.NoError(t, err)
	return svc
}

func code(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	c, err := totp.GenerateTOTPWithTime(secret, at)
	require.NoError(t, err)
	return c
}

// enroll runs setup for a new user and returns the user, its secret and backup codes.
func (f *fixture) enroll(t *testing.T) (uuid.UUID, string, []string) {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()

	setup, err := f.svc.BeginSetup(ctx, userID, "alice@example.com")
	require.NoError(t, err)
	codes, err := f.svc.CompleteSetup(ctx, userID, setup.Secret, code(t, setup.Secret, fixedNow))
	require.NoError(t, err)
	return userID, setup.Secret, codes
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	_, err := twofactor.NewService(" ", twofactor.Deps{})
	assert.ErrorIs(t, err, twofactor.ErrInvalidInput)

	_, err = twofactor.NewService("Example", twofactor.Deps{Store: twofactor.NewMemoryStore()})
	assert.ErrorIs(t, err, twofactor.ErrInvalidInput)
}

func TestSetupAndLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	setup, err := f.svc.BeginSetup(ctx, userID, "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, setup.Secret, 32)
	assert.True(t, strings.HasPrefix(setup.URI, "otpauth://totp/Example:alice@example.com?"))
	assert.Contains(t, setup.URI, "secret="+setup.Secret)
	assert.True(t, strings.HasPrefix(setup.QRCode, "data:image/png;base64,"))

	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.Enabled, "begin setup must not persist anything")

	_, err = f.svc.CompleteSetup(ctx, userID, setup.Secret, "000000")
	if err == nil {
		t.Skip("random secret produced 000000 for the fixed time")
	}
	require.ErrorIs(t, err, twofactor.ErrInvalidToken)

	codes, err := f.svc.CompleteSetup(ctx, userID, setup.Secret, code(t, setup.Secret, fixedNow))
	require.NoError(t, err)
	assert.Len(t, codes, backupcode.DefaultCount)

	status, err = f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, backupcode.DefaultCount, status.BackupCodesRemaining)
	require.NotNil(t, status.EnabledAt)
	assert.True(t, fixedNow.Equal(*status.EnabledAt))

	cred, err := f.store.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(cred.EncryptedSecret, []byte(setup.Secret)), "secret stored in plaintext")
	for i, ct := range cred.EncryptedBackupCodes {
		assert.False(t, bytes.Contains(ct, []byte(backupcode.Normalize(codes[i]))), "backup code stored in plaintext")
	}

	t.Run("current and adjacent windows accepted", func(t *testing.T) {
		for _, at := range []time.Time{fixedNow, fixedNow.Add(-30 * time.Second), fixedNow.Add(30 * time.Second)} {
			assert.NoError(t, f.svc.VerifyLogin(ctx, userID, code(t, setup.Secret, at), false))
		}
	})

	t.Run("distant window rejected", func(t *testing.T) {
		stale := code(t, setup.Secret, fixedNow.Add(-5*time.Minute))
		if stale == code(t, setup.Secret, fixedNow) {
			t.Skip("codes collide")
		}
		assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, stale, false), twofactor.ErrInvalidToken)
	})

	t.Run("malformed token rejected", func(t *testing.T) {
		for _, token := range []string{"", "12345", "abcdef", "1234567"} {
			assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, token, false), twofactor.ErrInvalidToken)
		}
	})

	t.Run("setup again rejected", func(t *testing.T) {
		_, err := f.svc.BeginSetup(ctx, userID, "alice@example.com")
		assert.ErrorIs(t, err, twofactor.ErrAlreadyEnabled)
		_, err = f.svc.CompleteSetup(ctx, userID, setup.Secret, code(t, setup.Secret, fixedNow))
		assert.ErrorIs(t, err, twofactor.ErrAlreadyEnabled)
	})
}

func TestBeginSetupValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.BeginSetup(context.Background(), uuid.New(), "  ")
	assert.ErrorIs(t, err, twofactor.ErrInvalidInput)
	_, err = f.svc.BeginSetup(context.Background(), uuid.Nil, "alice")
	assert.ErrorIs(t, err, twofactor.ErrInvalidInput)
}

func TestCompleteSetupRejectsBadSecrets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"not base32", "not-a-secret!"},
		{"too short", "JBSWY3DPEHPK3PXP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.svc.CompleteSetup(context.Background(), uuid.New(), tt.secret, "123456")
			assert.ErrorIs(t, err, twofactor.ErrInvalidSecret)
		})
	}
}

func TestCompleteSetupAcceptsLowercaseSecret(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	userID := uuid.New()

	setup, err := f.svc.BeginSetup(context.Background(), userID, "bob")
	require.NoError(t, err)
	_, err = f.svc.CompleteSetup(context.Background(), userID, strings.ToLower(setup.Secret), code(t, setup.Secret, fixedNow))
	require.NoError(t, err)

	assert.NoError(t, f.svc.VerifyLogin(context.Background(), userID, code(t, setup.Secret, fixedNow), false))
}

func TestBackupCodeSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	userID, _, codes := f.enroll(t)

	require.NoError(t, f.svc.VerifyLogin(ctx, userID, codes[0], true))
	assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, codes[0], true), twofactor.ErrInvalidBackupCode)

	// Case and separators are ignored.
	relaxed := strings.ToLower(strings.ReplaceAll(codes[1], "-", " "))
	require.NoError(t, f.svc.VerifyLogin(ctx, userID, relaxed, true))

	assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "", true), twofactor.ErrInvalidBackupCode)
	assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "ZZZZ-ZZZZ", true), twofactor.ErrInvalidBackupCode)

	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, len(codes)-2, status.BackupCodesRemaining)
}

func TestBackupCodesExhausted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	userID, secret, codes := f.enroll(t)

	for _, c := range codes {
		require.NoError(t, f.svc.VerifyLogin(ctx, userID, c, true))
	}
	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Zero(t, status.BackupCodesRemaining)

	assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, codes[0], true), twofactor.ErrInvalidBackupCode)
	assert.NoError(t, f.svc.VerifyLogin(ctx, userID, code(t, secret, fixedNow), false))
}

func TestBackupCodeConcurrentRedeem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	userID, _, codes := f.enroll(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := f.svc.VerifyLogin(ctx, userID, codes[0], true)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, twofactor.ErrInvalidBackupCode)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, len(codes)-1, status.BackupCodesRemaining)
}

func TestDisable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	userID, secret, _ := f.enroll(t)

	f.passwords.On("VerifyPassword", mock.Anything, userID, "wrong").Return(false, nil).Once()
	f.passwords.On("VerifyPassword", mock.Anything, userID, testPassword).Return(true, nil).Once()

	assert.ErrorIs(t, f.svc.Disable(ctx, userID, ""), twofactor.ErrWrongPassword)
	assert.ErrorIs(t, f.svc.Disable(ctx, userID, "wrong"), twofactor.ErrWrongPassword)

	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, status.Enabled)

	require.NoError(t, f.svc.Disable(ctx, userID, testPassword))

	status, err = f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.Enabled)
	assert.Zero(t, status.BackupCodesRemaining)

	assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, code(t, secret, fixedNow), false), twofactor.ErrNotEnabled)
	assert.ErrorIs(t, f.svc.Disable(ctx, userID, testPassword), twofactor.ErrNotEnabled)
	f.passwords.AssertExpectations(t)

	// Enrollment can start over.
	setup, err := f.svc.BeginSetup(ctx, userID, "alice@example.com")
	require.NoError(t, err)
	_, err = f.svc.CompleteSetup(ctx, userID, setup.Secret, code(t, setup.Secret, fixedNow))
	require.NoError(t, err)
}

func TestDisablePasswordCheckFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	userID, _, _ := f.enroll(t)

	boom := errors.New("database down")
	f.passwords.On("VerifyPassword", mock.Anything, userID, testPassword).Return(false, boom)

	err := f.svc.Disable(context.Background(), userID, testPassword)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, twofactor.ErrWrongPassword)
}

func TestRegenerateBackupCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	userID, secret, oldCodes := f.enroll(t)
	require.NoError(t, f.svc.VerifyLogin(ctx, userID, oldCodes[0], true))

	_, err := f.svc.RegenerateBackupCodes(ctx, userID, "12345")
	require.ErrorIs(t, err, twofactor.ErrInvalidToken)

	newCodes, err := f.svc.RegenerateBackupCodes(ctx, userID, code(t, secret, fixedNow))
	require.NoError(t, err)
	assert.Len(t, newCodes, backupcode.DefaultCount)

	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, backupcode.DefaultCount, status.BackupCodesRemaining)

	for _, c := range oldCodes[1:] {
		if assert.NotContains(t, newCodes, c) {
			assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, c, true), twofactor.ErrInvalidBackupCode)
		}
	}
	assert.NoError(t, f.svc.VerifyLogin(ctx, userID, newCodes[0], true))
}

func TestOperationsRequireEnabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()

	assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "123456", false), twofactor.ErrNotEnabled)
	assert.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, "ABCD-EFGH", true), twofactor.ErrNotEnabled)
	_, err := f.svc.RegenerateBackupCodes(ctx, userID, "123456")
	assert.ErrorIs(t, err, twofactor.ErrNotEnabled)
	assert.ErrorIs(t, f.svc.Disable(ctx, userID, testPassword), twofactor.ErrNotEnabled)

	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, &twofactor.Status{}, status)
}

func TestDecryptionFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := twofactor.NewMetrics(reg)
	require.NoError(t, err)

	f := newFixture(t)
	userID, secret, codes := f.enroll(t)

	otherKey, err := secrets.GenerateKey()
	require.NoError(t, err)
	rotated := f.service(t, otherKey, twofactor.WithMetrics(metrics))

	assert.ErrorIs(t, rotated.VerifyLogin(ctx, userID, code(t, secret, fixedNow), false), twofactor.ErrDecryption)
	assert.ErrorIs(t, rotated.VerifyLogin(ctx, userID, codes[0], true), twofactor.ErrDecryption)
	_, err = rotated.RegenerateBackupCodes(ctx, userID, code(t, secret, fixedNow))
	assert.ErrorIs(t, err, twofactor.ErrDecryption)

	expected := `
# HELP twofactor_decryption_failures_total Stored two-factor secrets or backup codes that failed to decrypt.
# TYPE twofactor_decryption_failures_total counter
twofactor_decryption_failures_total 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "twofactor_decryption_failures_total"))

	// The original key still works and no code was consumed.
	status, err := f.svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, len(codes), status.BackupCodesRemaining)
}

func TestLimiter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("denied", func(t *testing.T) {
		t.Parallel()
		limiter := &mockLimiter{}
		f := newFixture(t)
		userID, secret, _ := f.enroll(t)
		svc := f.service(t, f.master, twofactor.WithLimiter(limiter))

		limiter.On("Allow", mock.Anything, "twofactor:"+userID.String()).Return(false, nil)
		assert.ErrorIs(t, svc.VerifyLogin(ctx, userID, code(t, secret, fixedNow), false), twofactor.ErrTooManyAttempts)
		_, err := svc.RegenerateBackupCodes(ctx, userID, code(t, secret, fixedNow))
		assert.ErrorIs(t, err, twofactor.ErrTooManyAttempts)
		limiter.AssertNumberOfCalls(t, "Allow", 2)
	})

	t.Run("limiter error fails closed", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("redis unavailable")
		f := newFixture(t, twofactor.WithLimiter(twofactor.LimiterFunc(func(context.Context, string) (bool, error) {
			return false, boom
		})))
		_, err := f.svc.CompleteSetup(ctx, uuid.New(), "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP", "123456")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("allowed", func(t *testing.T) {
		t.Parallel()
		limiter := &mockLimiter{}
		limiter.On("Allow", mock.Anything, mock.AnythingOfType("string")).Return(true, nil)
		f := newFixture(t, twofactor.WithLimiter(limiter))
		userID, secret, _ := f.enroll(t)
		assert.NoError(t, f.svc.VerifyLogin(ctx, userID, code(t, secret, fixedNow), false))
		limiter.AssertExpectations(t)
	})
}

func TestMetricsOutcomes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := twofactor.NewMetrics(reg)
	require.NoError(t, err)

	// A second registration reuses the collectors.
	again, err := twofactor.NewMetrics(reg)
	require.NoError(t, err)

	f := newFixture(t, twofactor.WithMetrics(metrics))
	userID, _, codes := f.enroll(t)
	require.NoError(t, f.svc.VerifyLogin(ctx, userID, codes[0], true))
	require.ErrorIs(t, f.svc.VerifyLogin(ctx, userID, codes[0], true), twofactor.ErrInvalidBackupCode)

	other := f.service(t, f.master, twofactor.WithMetrics(again))
	require.ErrorIs(t, other.VerifyLogin(ctx, userID, "12", false), twofactor.ErrInvalidToken)

	expected := `
# HELP twofactor_operations_total Two-factor operations by operation and outcome.
# TYPE twofactor_operations_total counter
twofactor_operations_total{operation="begin_setup",outcome="success"} 1
twofactor_operations_total{operation="complete_setup",outcome="success"} 1
twofactor_operations_total{operation="verify_login",outcome="invalid_backup_code"} 1
twofactor_operations_total{operation="verify_login",outcome="invalid_token"} 1
twofactor_operations_total{operation="verify_login",outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "twofactor_operations_total"))
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{twofactor.ErrInvalidToken, "invalid_token"},
		{errors.Join(twofactor.ErrInvalidBackupCode, twofactor.ErrConflict), "invalid_backup_code"},
		{twofactor.ErrAlreadyEnabled, "already_enabled"},
		{twofactor.ErrNotEnabled, "not_enabled"},
		{twofactor.ErrDecryption, "decryption_failed"},
		{twofactor.ErrWrongPassword, "wrong_password"},
		{twofactor.ErrInvalidSecret, "invalid_secret"},
		{twofactor.ErrTooManyAttempts, "too_many_attempts"},
		{twofactor.ErrInvalidInput, "invalid_input"},
		{twofactor.ErrConflict, "conflict"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, twofactor.ErrorCode(tt.err))
		})
	}
}
