package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.pilab.hu/authgate/domain"
)

// ErrSessionNotFound is returned when no session matches the lookup.
var ErrSessionNotFound = errors.New("refresh session not found")

// SessionRepositoryMongo implements domain.SessionRepository using MongoDB.
type SessionRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSessionRepositoryMongo creates a new SessionRepositoryMongo.
// It also ensures that necessary indexes are created on the collection.
func NewSessionRepositoryMongo(ctx context.Context, db *mongo.Database) (*SessionRepositoryMongo, error) {
	repo := &SessionRepositoryMongo{
		collection: db.Collection(RefreshSessionsCollection),
	}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}}, // user can have many sessions
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index for automatic cleanup
		},
	}

	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels, options.CreateIndexes()); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for refresh_sessions collection (might already exist)")
	}

	return repo, nil
}

// StoreSession creates a new refresh-session record.
func (r *SessionRepositoryMongo) StoreSession(ctx context.Context, session *domain.RefreshSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.IssuedAt.IsZero() {
		session.IssuedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("refresh session with this token id already exists")
		}
		log.Error().Err(err).Msg("Error storing refresh session in MongoDB")
		return err
	}
	return nil
}

// GetSessionByTokenID retrieves a session by the refresh token's jti.
func (r *SessionRepositoryMongo) GetSessionByTokenID(ctx context.Context, tokenID string) (*domain.RefreshSession, error) {
	var session domain.RefreshSession
	err := r.collection.FindOne(ctx, bson.M{"token_id": tokenID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		log.Error().Err(err).Str("token_id", tokenID).Msg("Error getting refresh session from MongoDB")
		return nil, err
	}
	return &session, nil
}

// DeleteSessionByTokenID removes the session for a revoked refresh token.
func (r *SessionRepositoryMongo) DeleteSessionByTokenID(ctx context.Context, tokenID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"token_id": tokenID})
	if err != nil {
		log.Error().Err(err).Str("token_id", tokenID).Msg("Error deleting refresh session from MongoDB")
		return err
	}
	if result.DeletedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSessionsByUserID removes all sessions for a given user.
func (r *SessionRepositoryMongo) DeleteSessionsByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Error deleting refresh sessions by user from MongoDB")
		return 0, err
	}
	return result.DeletedCount, nil
}

// ListSessionsByUserID retrieves a user's sessions, newest first.
func (r *SessionRepositoryMongo) ListSessionsByUserID(ctx context.Context, userID string) ([]*domain.RefreshSession, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}}))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Error listing refresh sessions from MongoDB")
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*domain.RefreshSession
	if err = cursor.All(ctx, &sessions); err != nil {
		log.Error().Err(err).Msg("Error decoding refresh sessions from MongoDB")
		return nil, err
	}
	return sessions, nil
}

// Ensure interface compliance
var _ domain.SessionRepository = (*SessionRepositoryMongo)(nil)
