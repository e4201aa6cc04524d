package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/calmwave/calmwave/internal/audiostore"
	"github.com/calmwave/calmwave/internal/cache"
	"github.com/calmwave/calmwave/internal/events"
	"github.com/calmwave/calmwave/internal/models"
	mongorepo "github.com/calmwave/calmwave/internal/repositories/mongo"
	"github.com/calmwave/calmwave/internal/storage"
	"github.com/calmwave/calmwave/internal/utils"
)

const listCacheTTL = 15 * time.Second

type SessionService interface {
	Get(ctx context.Context, sessionID, userID string, admin bool) (*models.Session, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Session, error)
	// OpenArtifact streams the processed artifact. NotReady unless the
	// session has reached processed.
	OpenArtifact(ctx context.Context, sessionID, userID string, admin bool) (io.ReadCloser, *models.Session, error)
	// Delete removes the artifact and chunk remnants and marks the session
	// deleted. Idempotent: deleting a deleted session succeeds.
	Delete(ctx context.Context, sessionID, userID string, admin bool) error
}

type sessionService struct {
	sessions mongorepo.SessionRepository
	chunks   mongorepo.ChunkRepository
	payloads *audiostore.Store
	store    storage.Store
	locks    *SessionLocks
	pub      events.Publisher
	cache    cache.Cache
	log      *logrus.Logger
}

func NewSessionService(
	sessions mongorepo.SessionRepository,
	chunks mongorepo.ChunkRepository,
	payloads *audiostore.Store,
	store storage.Store,
	locks *SessionLocks,
	pub events.Publisher,
	c cache.Cache,
	log *logrus.Logger,
) SessionService {
	return &sessionService{
		sessions: sessions,
		chunks:   chunks,
		payloads: payloads,
		store:    store,
		locks:    locks,
		pub:      pub,
		cache:    c,
		log:      log,
	}
}

func (s *sessionService) Get(ctx context.Context, sessionID, userID string, admin bool) (*models.Session, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if sess.UserID != userID && !admin {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	if sess.Status == models.StatusDeleted {
		return nil, utils.E(utils.CodeNotFound, op, "session not found", nil)
	}
	return sess, nil
}

func (s *sessionService) ListByOwner(ctx context.Context, userID string) ([]models.Session, error) {
	const op = "SessionService.ListByOwner"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "owner identity is required", nil)
	}

	key := cache.SessionListKey(userID)
	var cached []models.Session
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	out, err := s.sessions.ListByOwner(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	_ = s.cache.SetJSON(ctx, key, out, listCacheTTL)
	return out, nil
}

func (s *sessionService) OpenArtifact(ctx context.Context, sessionID, userID string, admin bool) (io.ReadCloser, *models.Session, error) {
	const op = "SessionService.OpenArtifact"

	sess, err := s.Get(ctx, sessionID, userID, admin)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != models.StatusProcessed || sess.ArtifactPath == "" {
		return nil, nil, utils.E(utils.CodeNotReady, op, "artifact not ready", nil)
	}

	rc, err := s.store.Get(ctx, sess.ArtifactPath)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to open artifact", err)
	}
	return rc, sess, nil
}

func (s *sessionService) Delete(ctx context.Context, sessionID, userID string, admin bool) error {
	const op = "SessionService.Delete"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if sess.UserID != userID && !admin {
		return utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	if sess.Status == models.StatusDeleted {
		// already gone; deleting twice is fine
		return nil
	}

	if sess.ArtifactPath != "" {
		if err := s.store.Delete(ctx, sess.ArtifactPath); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to remove artifact", err)
		}
	}
	if err := s.payloads.RemoveSession(sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to remove chunk payloads", err)
	}
	if err := s.chunks.DeleteBySession(ctx, sessionID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to remove chunk records", err)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, models.StatusDeleted); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to mark session deleted", err)
	}

	_ = s.cache.Del(ctx, cache.SessionListKey(sess.UserID))
	_ = s.pub.PublishStatus(ctx, events.StatusEvent{SessionID: sessionID, Status: models.StatusDeleted})
	s.log.WithField("session_id", sessionID).Info("session deleted")
	return nil
}
