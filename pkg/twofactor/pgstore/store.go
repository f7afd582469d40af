// Package pgstore persists two-factor credentials in Postgres.
//
// Every write is a single conditional statement; a statement that matches no
// row is reported as twofactor.ErrConflict or twofactor.ErrCredentialNotFound.
// The schema lives in the top-level migrations package.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/twofactor/pkg/pg"
	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DB
}

var _ twofactor.Store = (*Store)(nil)

func New(db DB) *Store {
	return &Store{db: db}
}

const getQuery = `
	SELECT enabled, encrypted_secret, encrypted_backup_codes, version, enabled_at, updated_at
	FROM two_factor_credentials WHERE user_id = $1`

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*twofactor.Credential, error) {
	cred := &twofactor.Credential{UserID: userID}
	err := s.db.QueryRow(ctx, getQuery, userID).Scan(
		&cred.Enabled,
		&cred.EncryptedSecret,
		&cred.EncryptedBackupCodes,
		&cred.Version,
		&cred.EnabledAt,
		&cred.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, twofactor.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// A disabled row is overwritten; an enabled one is left alone and reported as a conflict.
const enableQuery = `
	INSERT INTO two_factor_credentials
		(user_id, enabled, encrypted_secret, encrypted_backup_codes, version, enabled_at, updated_at)
	VALUES ($1, true, $2, $3, 1, $4, now())
	ON CONFLICT (user_id) DO UPDATE SET
		enabled = true,
		encrypted_secret = EXCLUDED.encrypted_secret,
		encrypted_backup_codes = EXCLUDED.encrypted_backup_codes,
		version = two_factor_credentials.version + 1,
		enabled_at = EXCLUDED.enabled_at,
		updated_at = now()
	WHERE two_factor_credentials.enabled = false`

func (s *Store) Enable(ctx context.Context, cred *twofactor.Credential) error {
	enabledAt := time.Now()
	if cred.EnabledAt != nil {
		enabledAt = *cred.EnabledAt
	}

	tag, err := s.db.Exec(ctx, enableQuery, cred.UserID, cred.EncryptedSecret, nonNil(cred.EncryptedBackupCodes), enabledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return twofactor.ErrConflict
	}
	return nil
}

const updateCodesQuery = `
	UPDATE two_factor_credentials
	SET encrypted_backup_codes = $3, version = version + 1, updated_at = now()
	WHERE user_id = $1 AND version = $2 AND enabled`

func (s *Store) UpdateBackupCodes(ctx context.Context, userID uuid.UUID, expectedVersion int64, codes [][]byte) error {
	tag, err := s.db.Exec(ctx, updateCodesQuery, userID, expectedVersion, nonNil(codes))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return twofactor.ErrConflict
	}
	return nil
}

const disableQuery = `
	UPDATE two_factor_credentials
	SET enabled = false,
		encrypted_secret = NULL,
		encrypted_backup_codes = '{}',
		enabled_at = NULL,
		version = version + 1,
		updated_at = now()
	WHERE user_id = $1 AND enabled`

func (s *Store) Disable(ctx context.Context, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, disableQuery, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.Join(twofactor.ErrCredentialNotFound, pgx.ErrNoRows)
	}
	return nil
}

// nonNil keeps the NOT NULL array column from receiving NULL.
func nonNil(codes [][]byte) [][]byte {
	if codes == nil {
		return [][]byte{}
	}
	return codes
}
