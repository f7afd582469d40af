// Package mongostore persists two-factor credentials in MongoDB, one document
// per user keyed by the user ID.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/twofactor/pkg/twofactor"
)

const DefaultCollection = "two_factor_credentials"

type document struct {
	ID                   string     `bson:"_id"`
	Enabled              bool       `bson:"enabled"`
	EncryptedSecret      []byte     `bson:"encrypted_secret,omitempty"`
	EncryptedBackupCodes [][]byte   `bson:"encrypted_backup_codes"`
	Version              int64      `bson:"version"`
	EnabledAt            *time.Time `bson:"enabled_at,omitempty"`
	UpdatedAt            time.Time  `bson:"updated_at"`
}

type Store struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ twofactor.Store = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New stores credentials in the named collection of db. An empty name uses DefaultCollection.
func New(db *mongo.Database, collection string, opts ...Option) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	s := &Store{
		coll: db.Collection(collection),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*twofactor.Credential, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": userID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, twofactor.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}

	return &twofactor.Credential{
		UserID:               userID,
		Enabled:              doc.Enabled,
		EncryptedSecret:      doc.EncryptedSecret,
		EncryptedBackupCodes: doc.EncryptedBackupCodes,
		Version:              doc.Version,
		EnabledAt:            doc.EnabledAt,
		UpdatedAt:            doc.UpdatedAt,
	}, nil
}

// Enable upserts the credential unless an enabled one exists. In that case
// the filter misses, the upsert collides on _id and the duplicate key error
// becomes twofactor.ErrConflict.
func (s *Store) Enable(ctx context.Context, cred *twofactor.Credential) error {
	now := s.now()
	enabledAt := now
	if cred.EnabledAt != nil {
		enabledAt = *cred.EnabledAt
	}

	filter := bson.M{"_id": cred.UserID.String(), "enabled": bson.M{"$ne": true}}
	update := bson.M{
		"$set": bson.M{
			"enabled":                true,
			"encrypted_secret":       cred.EncryptedSecret,
			"encrypted_backup_codes": nonNil(cred.EncryptedBackupCodes),
			"enabled_at":             enabledAt,
			"updated_at":             now,
		},
		"$inc": bson.M{"version": 1},
	}

	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(twofactor.ErrConflict, err)
	}
	return err
}

func (s *Store) UpdateBackupCodes(ctx context.Context, userID uuid.UUID, expectedVersion int64, codes [][]byte) error {
	filter := bson.M{"_id": userID.String(), "version": expectedVersion, "enabled": true}
	update := bson.M{
		"$set": bson.M{
			"encrypted_backup_codes": nonNil(codes),
			"updated_at":             s.now(),
		},
		"$inc": bson.M{"version": 1},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return twofactor.ErrConflict
	}
	return nil
}

func (s *Store) Disable(ctx context.Context, userID uuid.UUID) error {
	filter := bson.M{"_id": userID.String(), "enabled": true}
	update := bson.M{
		"$set": bson.M{
			"enabled":                false,
			"encrypted_backup_codes": [][]byte{},
			"updated_at":             s.now(),
		},
		"$unset": bson.M{"encrypted_secret": "", "enabled_at": ""},
		"$inc":   bson.M{"version": 1},
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return twofactor.ErrCredentialNotFound
	}
	return nil
}

func nonNil(codes [][]byte) [][]byte {
	if codes == nil {
		return [][]byte{}
	}
	return codes
}
