package twofactor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/twofactor/pkg/backupcode"
	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/qrcode"
	"github.com/dmitrymomot/twofactor/pkg/totp"
)

const limiterKeyPrefix = "twofactor:"

// Deps are the collaborators a Service cannot work without.
type Deps struct {
	Store     Store
	Secrets   Cipher
	Codes     *backupcode.Manager
	Passwords PasswordVerifier
}

// Service runs the two-factor lifecycle for user accounts.
type Service struct {
	issuer    string
	store     Store
	secrets   Cipher
	codes     *backupcode.Manager
	passwords PasswordVerifier
	validator *totp.Validator
	limiter   Limiter
	metrics   *Metrics
	log       *slog.Logger
	qrSize    int
	now       func() time.Time
}

func NewService(issuer string, deps Deps, opts ...Option) (*Service, error) {
	issuer = strings.TrimSpace(issuer)
	switch {
	case issuer == "":
		return nil, errors.Join(ErrInvalidInput, totp.ErrMissingIssuer)
	case deps.Store == nil, deps.Secrets == nil, deps.Codes == nil, deps.Passwords == nil:
		return nil, errors.Join(ErrInvalidInput, errors.New("store, secrets cipher, backup codes and password verifier are required"))
	}

	s := &Service{
		issuer:    issuer,
		store:     deps.Store,
		secrets:   deps.Secrets,
		codes:     deps.Codes,
		passwords: deps.Passwords,
		validator: totp.NewValidator(),
		log:       logger.Discard(),
		qrSize:    qrcode.DefaultSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("twofactor"))
	return s, nil
}

// BeginSetup generates a new secret for userID. Nothing is persisted: the
// caller keeps the secret until CompleteSetup proves the authenticator works.
func (s *Service) BeginSetup(ctx context.Context, userID uuid.UUID, label string) (setup *Setup, err error) {
	defer func() { err = s.finish(ctx, EventBeginSetup, userID, err) }()

	label = strings.TrimSpace(label)
	if userID == uuid.Nil || label == "" {
		return nil, ErrInvalidInput
	}

	cred, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := fire(cred, EventBeginSetup); err != nil {
		return nil, err
	}

	key, err := totp.NewKey(totp.KeyParams{AccountName: label, Issuer: s.issuer})
	if err != nil {
		return nil, err
	}
	qr, err := qrcode.ProvisioningDataURI(key.URI, s.qrSize)
	if err != nil {
		return nil, err
	}

	return &Setup{Secret: key.Secret, URI: key.URI, QRCode: qr}, nil
}

// CompleteSetup enables two-factor authentication once token proves the user
// holds secret. It returns the plaintext backup codes, shown exactly once.
func (s *Service) CompleteSetup(ctx context.Context, userID uuid.UUID, secret, token string) (codes []string, err error) {
	defer func() { err = s.finish(ctx, EventCompleteSetup, userID, err) }()

	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	if err := s.allow(ctx, userID); err != nil {
		return nil, err
	}

	cred, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := fire(cred, EventCompleteSetup); err != nil {
		return nil, err
	}

	secret = totp.NormalizeSecret(secret)
	key, err := totp.DecodeSecret(secret)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	if len(key) != totp.SecretSize {
		return nil, ErrInvalidSecret
	}
	if err := s.checkToken(secret, token); err != nil {
		return nil, err
	}

	codes, err = s.codes.Generate()
	if err != nil {
		return nil, err
	}
	encCodes, err := s.codes.EncryptAll(codes)
	if err != nil {
		return nil, err
	}
	encSecret, err := s.secrets.Encrypt([]byte(secret))
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.store.Enable(ctx, &Credential{
		UserID:               userID,
		Enabled:              true,
		EncryptedSecret:      encSecret,
		EncryptedBackupCodes: encCodes,
		EnabledAt:            &now,
		UpdatedAt:            now,
	})
	if errors.Is(err, ErrConflict) {
		return nil, errors.Join(ErrAlreadyEnabled, err)
	}
	if err != nil {
		return nil, err
	}

	return codes, nil
}

// VerifyLogin checks the second factor of a login. With isBackupCode set the
// submitted value is redeemed as a backup code and cannot be used again.
func (s *Service) VerifyLogin(ctx context.Context, userID uuid.UUID, tokenOrCode string, isBackupCode bool) (err error) {
	defer func() { err = s.finish(ctx, EventVerifyLogin, userID, err) }()

	if userID == uuid.Nil {
		return ErrInvalidInput
	}
	if err := s.allow(ctx, userID); err != nil {
		return err
	}

	cred, err := s.enabled(ctx, userID, EventVerifyLogin)
	if err != nil {
		return err
	}

	if !isBackupCode {
		secret, err := s.decryptSecret(cred)
		if err != nil {
			return err
		}
		return s.checkToken(secret, tokenOrCode)
	}

	remaining, ok, err := s.codes.Consume(tokenOrCode, cred.EncryptedBackupCodes)
	if err != nil {
		return errors.Join(ErrDecryption, err)
	}
	if !ok {
		return ErrInvalidBackupCode
	}

	err = s.store.UpdateBackupCodes(ctx, userID, cred.Version, remaining)
	switch {
	case errors.Is(err, ErrConflict):
		// Another request changed the codes first. The code may already be spent.
		return errors.Join(ErrInvalidBackupCode, err)
	case err != nil:
		return err
	}

	s.log.InfoContext(ctx, "backup code redeemed",
		logger.UserID(userID),
		logger.Event("backup_code_used"),
		logger.Remaining(len(remaining)),
	)
	return nil
}

// Disable turns two-factor authentication off after re-checking the account password.
func (s *Service) Disable(ctx context.Context, userID uuid.UUID, password string) (err error) {
	defer func() { err = s.finish(ctx, EventDisable, userID, err) }()

	if userID == uuid.Nil {
		return ErrInvalidInput
	}
	if err := s.allow(ctx, userID); err != nil {
		return err
	}

	if _, err := s.enabled(ctx, userID, EventDisable); err != nil {
		return err
	}

	if password == "" {
		return ErrWrongPassword
	}
	ok, err := s.passwords.VerifyPassword(ctx, userID, password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongPassword
	}

	err = s.store.Disable(ctx, userID)
	if errors.Is(err, ErrCredentialNotFound) {
		return errors.Join(ErrNotEnabled, err)
	}
	return err
}

// RegenerateBackupCodes replaces every backup code after a valid TOTP token.
// Old codes stop working immediately.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, token string) (codes []string, err error) {
	defer func() { err = s.finish(ctx, EventRegenerateCodes, userID, err) }()

	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	if err := s.allow(ctx, userID); err != nil {
		return nil, err
	}

	cred, err := s.enabled(ctx, userID, EventRegenerateCodes)
	if err != nil {
		return nil, err
	}
	secret, err := s.decryptSecret(cred)
	if err != nil {
		return nil, err
	}
	if err := s.checkToken(secret, token); err != nil {
		return nil, err
	}

	codes, err = s.codes.Generate()
	if err != nil {
		return nil, err
	}
	encCodes, err := s.codes.EncryptAll(codes)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateBackupCodes(ctx, userID, cred.Version, encCodes); err != nil {
		return nil, err
	}
	return codes, nil
}

// Status reports whether two-factor authentication is on and how many backup
// codes are left.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	if userID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	cred, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred.State() != StateEnabled {
		return &Status{}, nil
	}
	return &Status{
		Enabled:              true,
		BackupCodesRemaining: len(cred.EncryptedBackupCodes),
		EnabledAt:            cred.EnabledAt,
	}, nil
}

// load returns the stored credential, or nil if the user never enrolled.
func (s *Service) load(ctx context.Context, userID uuid.UUID) (*Credential, error) {
	cred, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrCredentialNotFound) {
		return nil, nil
	}
	return cred, err
}

func (s *Service) enabled(ctx context.Context, userID uuid.UUID, event Event) (*Credential, error) {
	cred, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := fire(cred, event); err != nil {
		return nil, err
	}
	return cred, nil
}

func (s *Service) allow(ctx context.Context, userID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, limiterKeyPrefix+userID.String())
	if err != nil {
		return err
	}
	if !ok {
		return ErrTooManyAttempts
	}
	return nil
}

func (s *Service) decryptSecret(cred *Credential) (string, error) {
	pt, err := s.secrets.Decrypt(cred.EncryptedSecret)
	if err != nil {
		return "", errors.Join(ErrDecryption, err)
	}
	return string(pt), nil
}

func (s *Service) checkToken(secret, token string) error {
	ok, err := s.validator.Validate(secret, token)
	switch {
	case errors.Is(err, totp.ErrInvalidOTP):
		return errors.Join(ErrInvalidToken, err)
	case errors.Is(err, totp.ErrInvalidSecret), errors.Is(err, totp.ErrMissingSecret):
		return errors.Join(ErrInvalidSecret, err)
	case err != nil:
		return err
	case !ok:
		return ErrInvalidToken
	}
	return nil
}

// finish records the outcome of an operation and returns err unchanged.
func (s *Service) finish(ctx context.Context, event Event, userID uuid.UUID, err error) error {
	s.metrics.observe(event, err)

	attrs := []any{
		logger.Operation(string(event)),
		logger.UserID(userID),
		logger.Outcome(ErrorCode(err)),
	}
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "two-factor operation succeeded", attrs...)
	case errors.Is(err, ErrDecryption):
		s.log.ErrorContext(ctx, "two-factor material could not be decrypted",
			append(attrs, logger.Event("decryption_failed"), logger.Error(err))...)
	case isRejection(err):
		s.log.InfoContext(ctx, "two-factor operation rejected", attrs...)
	default:
		s.log.ErrorContext(ctx, "two-factor operation failed", append(attrs, logger.Error(err))...)
	}
	return err
}
