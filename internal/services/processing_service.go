package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/calmwave/calmwave/internal/audiostore"
	"github.com/calmwave/calmwave/internal/cache"
	"github.com/calmwave/calmwave/internal/denoise"
	"github.com/calmwave/calmwave/internal/events"
	"github.com/calmwave/calmwave/internal/models"
	mongorepo "github.com/calmwave/calmwave/internal/repositories/mongo"
	"github.com/calmwave/calmwave/internal/storage"
	"github.com/calmwave/calmwave/internal/utils"
)

type ProcessingService interface {
	// Process assembles the session's chunks, runs them through the
	// enhancement service, and applies the terminal status transition.
	// Safe to call more than once: duplicate and concurrent calls for the
	// same session collapse into one attempt.
	Process(ctx context.Context, sessionID string) error
}

type processingService struct {
	sessions mongorepo.SessionRepository
	chunks   mongorepo.ChunkRepository
	payloads *audiostore.Store
	enhancer denoise.Enhancer
	store    storage.Store
	locks    *SessionLocks
	pub      events.Publisher
	cache    cache.Cache
	log      *logrus.Logger

	timeout time.Duration
	flight  singleflight.Group
}

func NewProcessingService(
	sessions mongorepo.SessionRepository,
	chunks mongorepo.ChunkRepository,
	payloads *audiostore.Store,
	enhancer denoise.Enhancer,
	store storage.Store,
	locks *SessionLocks,
	pub events.Publisher,
	c cache.Cache,
	log *logrus.Logger,
	timeout time.Duration,
) ProcessingService {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &processingService{
		sessions: sessions,
		chunks:   chunks,
		payloads: payloads,
		enhancer: enhancer,
		store:    store,
		locks:    locks,
		pub:      pub,
		cache:    c,
		log:      log,
		timeout:  timeout,
	}
}

func (s *processingService) Process(ctx context.Context, sessionID string) error {
	const op = "ProcessingService.Process"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	_, err, _ := s.flight.Do(sessionID, func() (any, error) {
		return nil, s.process(ctx, sessionID)
	})
	return err
}

func (s *processingService) process(ctx context.Context, sessionID string) error {
	const op = "ProcessingService.Process"

	log := s.log.WithField("session_id", sessionID)

	// assembly runs under the session lock; the slow external call does not
	assembled, owner, err := s.assemble(ctx, sessionID)
	if err != nil || assembled == nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	enhanced, enhErr := s.enhancer.Enhance(callCtx, sessionID, assembled)
	cancel()

	// re-acquire for the terminal transition
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	defer func() { _ = s.cache.Del(ctx, cache.SessionListKey(owner)) }()

	if enhErr != nil {
		log.WithError(enhErr).Error("enhancement failed")
		if err := s.sessions.SetFailed(ctx, sessionID, enhErr.Error()); err != nil {
			return utils.E(utils.CodeInternal, op, "failed to record processing failure", err)
		}
		_ = s.pub.PublishStatus(ctx, events.StatusEvent{
			SessionID: sessionID,
			Status:    models.StatusProcessingFailed,
			Message:   enhErr.Error(),
		})
		return nil
	}

	objectName := fmt.Sprintf("processed_%s.wav", sessionID)
	artifactPath, err := s.store.Put(ctx, objectName, "audio/wav", bytes.NewReader(enhanced))
	if err != nil {
		log.WithError(err).Error("failed to store artifact")
		if ferr := s.sessions.SetFailed(ctx, sessionID, "failed to store artifact: "+err.Error()); ferr != nil {
			return utils.E(utils.CodeInternal, op, "failed to record processing failure", ferr)
		}
		_ = s.pub.PublishStatus(ctx, events.StatusEvent{
			SessionID: sessionID,
			Status:    models.StatusProcessingFailed,
			Message:   "failed to store artifact",
		})
		return nil
	}

	if err := s.sessions.SetProcessed(ctx, sessionID, artifactPath); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to mark session processed", err)
	}
	_ = s.pub.PublishStatus(ctx, events.StatusEvent{SessionID: sessionID, Status: models.StatusProcessed})
	log.WithField("artifact_path", artifactPath).Info("session processed")
	return nil
}

// assemble validates the session, moves it to processing, and concatenates
// its chunks in sequence order. Returns (nil, owner, nil) when there is
// nothing to do (already terminal).
func (s *processingService) assemble(ctx context.Context, sessionID string) ([]byte, string, error) {
	const op = "ProcessingService.assemble"

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, "", utils.E(utils.CodeNotFound, op, "session not found", err)
	}

	switch sess.Status {
	case models.StatusAwaitingFinal:
		// proceed
	case models.StatusProcessed, models.StatusProcessingFailed, models.StatusDeleted:
		// duplicate trigger delivery; nothing to do
		return nil, sess.UserID, nil
	default:
		return nil, "", utils.E(utils.CodeConflict, op, "session is not awaiting processing", nil)
	}

	if !models.CanTransition(sess.Status, models.StatusProcessing) {
		return nil, "", utils.E(utils.CodeInternal, op, "illegal status transition", nil)
	}
	if err := s.sessions.SetStatus(ctx, sessionID, models.StatusProcessing); err != nil {
		return nil, "", utils.E(utils.CodeInternal, op, "failed to set status", err)
	}
	_ = s.pub.PublishStatus(ctx, events.StatusEvent{SessionID: sessionID, Status: models.StatusProcessing})

	manifest, err := s.chunks.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, "", utils.E(utils.CodeInternal, op, "failed to list chunks", err)
	}
	if len(manifest) == 0 {
		_ = s.sessions.SetFailed(ctx, sessionID, "no chunks to assemble")
		return nil, sess.UserID, nil
	}

	seqs := make([]int64, 0, len(manifest))
	for _, c := range manifest {
		seqs = append(seqs, c.Seq)
	}

	var buf bytes.Buffer
	if err := s.payloads.Assemble(sessionID, seqs, &buf); err != nil {
		_ = s.sessions.SetFailed(ctx, sessionID, "assembly failed: "+err.Error())
		_ = s.pub.PublishStatus(ctx, events.StatusEvent{
			SessionID: sessionID,
			Status:    models.StatusProcessingFailed,
			Message:   "assembly failed",
		})
		return nil, sess.UserID, nil
	}
	return buf.Bytes(), sess.UserID, nil
}
