package mongodb

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.pilab.hu/authgate/domain"
	serrors "go.pilab.hu/authgate/errors"
)

// SubjectRepositoryMongo implements domain.SubjectProvider against the
// platform's subject directory. It is the identity source consulted at
// issuance and at refresh-time status re-check.
type SubjectRepositoryMongo struct {
	collection *mongo.Collection
}

// NewSubjectRepositoryMongo creates a new SubjectRepositoryMongo.
func NewSubjectRepositoryMongo(db *mongo.Database) *SubjectRepositoryMongo {
	return &SubjectRepositoryMongo{
		collection: db.Collection(SubjectsCollection),
	}
}

// GetSubjectByID implements domain.SubjectProvider.
func (r *SubjectRepositoryMongo) GetSubjectByID(ctx context.Context, id string) (*domain.Subject, error) {
	var subject domain.Subject
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrSubjectNotFound
		}
		log.Error().Err(err).Str("subject_id", id).Msg("Error getting subject from MongoDB")
		return nil, err
	}
	return &subject, nil
}

// Ensure interface compliance
var _ domain.SubjectProvider = (*SubjectRepositoryMongo)(nil)
