package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session statuses, in pipeline order.
const (
	StatusRecording        = "recording"
	StatusUploading        = "uploading"
	StatusAwaitingFinal    = "awaiting_final"
	StatusProcessing       = "processing"
	StatusProcessed        = "processed"
	StatusProcessingFailed = "processing_failed"
	StatusDeleted          = "deleted"
)

// Session is one recording-to-artifact lifecycle.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4, server-minted
	UserID    string             `bson:"user_id" json:"user_id"`       // owner (jwt subject)

	Status     string `bson:"status" json:"status"`
	ChunkCount int64  `bson:"chunk_count" json:"chunk_count"` // highest accepted sequence + 1

	ArtifactPath string `bson:"artifact_path,omitempty" json:"artifact_path,omitempty"` // set only once processed
	LastError    string `bson:"last_error,omitempty" json:"last_error,omitempty"`       // set on processing_failed

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// validTransitions encodes the session status machine. A status not present
// here is terminal except for deletion, which is allowed from anywhere.
var validTransitions = map[string][]string{
	StatusRecording:     {StatusUploading},
	StatusUploading:     {StatusAwaitingFinal},
	StatusAwaitingFinal: {StatusProcessing},
	StatusProcessing:    {StatusProcessed, StatusProcessingFailed},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to string) bool {
	if to == StatusDeleted {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
