package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/calmwave/calmwave/internal/audiostore"
	"github.com/calmwave/calmwave/internal/cache"
	"github.com/calmwave/calmwave/internal/events"
	"github.com/calmwave/calmwave/internal/models"
	mongorepo "github.com/calmwave/calmwave/internal/repositories/mongo"
	"github.com/calmwave/calmwave/internal/utils"
)

// Trigger hands a session over to asynchronous processing once its final
// chunk has been accepted.
type Trigger interface {
	EnqueueProcessing(ctx context.Context, sessionID string) error
}

type IngestService interface {
	// Accept persists one uploaded chunk. An empty or unknown sessionID
	// creates a new session owned by userID; the returned session always
	// carries the canonical (server-minted) id the client must use from
	// then on.
	Accept(ctx context.Context, userID, sessionID string, seq int64, isFinal bool, data []byte) (*models.Session, error)
}

type ingestService struct {
	sessions mongorepo.SessionRepository
	chunks   mongorepo.ChunkRepository
	payloads *audiostore.Store
	trigger  Trigger
	locks    *SessionLocks
	pub      events.Publisher
	cache    cache.Cache
	log      *logrus.Logger
}

func NewIngestService(
	sessions mongorepo.SessionRepository,
	chunks mongorepo.ChunkRepository,
	payloads *audiostore.Store,
	trigger Trigger,
	locks *SessionLocks,
	pub events.Publisher,
	c cache.Cache,
	log *logrus.Logger,
) IngestService {
	return &ingestService{
		sessions: sessions,
		chunks:   chunks,
		payloads: payloads,
		trigger:  trigger,
		locks:    locks,
		pub:      pub,
		cache:    c,
		log:      log,
	}
}

func (s *ingestService) Accept(ctx context.Context, userID, sessionID string, seq int64, isFinal bool, data []byte) (*models.Session, error) {
	const op = "IngestService.Accept"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "owner identity is required", nil)
	}
	if seq < 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "sequence_number must be >= 0", nil)
	}
	if len(data) == 0 && !isFinal {
		// a final chunk may be an empty marker when the capture produced no
		// new bytes since the last slice
		return nil, utils.E(utils.CodeInvalidArgument, op, "empty audio payload", nil)
	}

	sess, err := s.resolveSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sess.SessionID)
	defer unlock()

	// re-read inside the critical section: a delete may have won the lock
	// between resolution and here, and admission must see its effect
	sess, err = s.sessions.GetBySessionID(ctx, sess.SessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	switch sess.Status {
	case models.StatusUploading:
		// ingest phase open
	case models.StatusDeleted:
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	default:
		return nil, utils.E(utils.CodeConflict, op, "session no longer accepts chunks", nil)
	}

	if fin, err := s.chunks.FinalChunk(ctx, sess.SessionID); err == nil && fin != nil {
		return nil, utils.E(utils.CodeConflict, op, "final chunk already received", nil)
	} else if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to check final chunk", err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	if existing, err := s.chunks.GetBySeq(ctx, sess.SessionID, seq); err == nil {
		if existing.SHA256 == digest {
			// idempotent re-upload
			return sess, nil
		}
		return nil, utils.E(utils.CodeConflict, op, "sequence conflict: chunk already received with different content", nil)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up chunk", err)
	}

	if err := s.payloads.SaveChunk(sess.SessionID, seq, data); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist chunk payload", err)
	}
	if err := s.chunks.Insert(ctx, &models.Chunk{
		SessionID:  sess.SessionID,
		Seq:        seq,
		SHA256:     digest,
		Size:       int64(len(data)),
		IsFinal:    isFinal,
		ReceivedAt: time.Now().UTC(),
	}); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to record chunk", err)
	}

	if seq+1 > sess.ChunkCount {
		sess.ChunkCount = seq + 1
		if err := s.sessions.SetChunkCount(ctx, sess.SessionID, sess.ChunkCount); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to update chunk count", err)
		}
	}

	_ = s.cache.Del(ctx, cache.SessionListKey(userID))

	if !isFinal {
		return sess, nil
	}

	if err := s.transition(ctx, sess, models.StatusAwaitingFinal); err != nil {
		return nil, err
	}

	if err := s.trigger.EnqueueProcessing(ctx, sess.SessionID); err != nil {
		// the session record survives; the failure is terminal for this
		// session and reported through its status
		s.log.WithError(err).WithField("session_id", sess.SessionID).Error("failed to enqueue processing")
		msg := "failed to enqueue processing: " + err.Error()
		if ferr := s.sessions.SetFailed(ctx, sess.SessionID, msg); ferr == nil {
			sess.Status = models.StatusProcessingFailed
			sess.LastError = msg
		}
		return sess, nil
	}

	return sess, nil
}

func (s *ingestService) resolveSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	const op = "IngestService.Accept"

	if sessionID != "" {
		sess, err := s.sessions.GetBySessionID(ctx, sessionID)
		if err == nil {
			if sess.UserID != userID {
				return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
			}
			return sess, nil
		}
		if !errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
		}
		// unknown id: fall through and mint a server-side one; the client
		// adopts it from the response
	}

	sess := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Status:    models.StatusUploading,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	s.log.WithFields(logrus.Fields{"session_id": sess.SessionID, "user_id": userID}).Info("session created")
	return sess, nil
}

func (s *ingestService) transition(ctx context.Context, sess *models.Session, to string) error {
	const op = "IngestService.transition"

	if !models.CanTransition(sess.Status, to) {
		return utils.E(utils.CodeInternal, op, "illegal status transition "+sess.Status+" -> "+to, nil)
	}
	if err := s.sessions.SetStatus(ctx, sess.SessionID, to); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	sess.Status = to
	_ = s.pub.PublishStatus(ctx, events.StatusEvent{SessionID: sess.SessionID, Status: to})
	return nil
}
