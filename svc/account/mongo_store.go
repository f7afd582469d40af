package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const UsersCollection = "users"

type userDocument struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
}

// MongoStore keeps users in the users collection. EnsureIndexes creates the
// unique email index.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(UsersCollection)}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) CreateUser(ctx context.Context, id uuid.UUID, email string, passwordHash []byte) error {
	_, err := s.coll.InsertOne(ctx, userDocument{
		ID:           id.String(),
		Email:        email,
		PasswordHash: string(passwordHash),
	})
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(ErrEmailTaken, err)
	}
	return err
}

func (s *MongoStore) GetPasswordHash(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	var doc userDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": userID.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.PasswordHash), nil
}
