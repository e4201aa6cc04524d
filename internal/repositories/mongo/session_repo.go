package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Session, error)
	SetStatus(ctx context.Context, sessionID, status string) error
	SetChunkCount(ctx context.Context, sessionID string, count int64) error
	SetProcessed(ctx context.Context, sessionID, artifactPath string) error
	SetFailed(ctx context.Context, sessionID, lastError string) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) ListByOwner(ctx context.Context, userID string) ([]models.Session, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"user_id": userID, "status": bson.M{"$ne": models.StatusDeleted}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	return r.set(ctx, sessionID, bson.M{"status": status})
}

func (r *sessionRepo) SetChunkCount(ctx context.Context, sessionID string, count int64) error {
	return r.set(ctx, sessionID, bson.M{"chunk_count": count})
}

func (r *sessionRepo) SetProcessed(ctx context.Context, sessionID, artifactPath string) error {
	return r.set(ctx, sessionID, bson.M{
		"status":        models.StatusProcessed,
		"artifact_path": artifactPath,
	})
}

func (r *sessionRepo) SetFailed(ctx context.Context, sessionID, lastError string) error {
	return r.set(ctx, sessionID, bson.M{
		"status":     models.StatusProcessingFailed,
		"last_error": lastError,
	})
}

func (r *sessionRepo) set(ctx context.Context, sessionID string, fields bson.M) error {
	fields["updated_at"] = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
