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

type ChunkRepository interface {
	Insert(ctx context.Context, c *models.Chunk) error
	GetBySeq(ctx context.Context, sessionID string, seq int64) (*models.Chunk, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Chunk, error)
	FinalChunk(ctx context.Context, sessionID string) (*models.Chunk, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type chunkRepo struct {
	col *mongo.Collection
}

func NewChunkRepo(db *mongo.Database) ChunkRepository {
	return &chunkRepo{col: db.Collection("chunks")}
}

func (r *chunkRepo) Insert(ctx context.Context, c *models.Chunk) error {
	if c.ReceivedAt.IsZero() {
		c.ReceivedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *chunkRepo) GetBySeq(ctx context.Context, sessionID string, seq int64) (*models.Chunk, error) {
	var c models.Chunk
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID, "seq": seq}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &c, err
}

func (r *chunkRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Chunk, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Chunk
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) FinalChunk(ctx context.Context, sessionID string) (*models.Chunk, error) {
	var c models.Chunk
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID, "is_final": true}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &c, err
}

func (r *chunkRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}
