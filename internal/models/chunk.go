package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chunk is the manifest entry for one transferred audio segment. Payload
// bytes live on disk under the session's upload directory; the manifest
// carries the digest used for duplicate/conflict detection.
type Chunk struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Seq       int64              `bson:"seq" json:"seq"` // starts at 0, unique per session

	SHA256  string `bson:"sha256" json:"sha256"`
	Size    int64  `bson:"size" json:"size"`
	IsFinal bool   `bson:"is_final" json:"is_final"`

	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
}
