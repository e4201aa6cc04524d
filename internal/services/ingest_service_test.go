package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmwave/calmwave/internal/audiostore"
	"github.com/calmwave/calmwave/internal/logger"
	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/utils"
)

type ingestFixture struct {
	svc      IngestService
	sessions *memSessionRepo
	chunks   *memChunkRepo
	payloads *audiostore.Store
	trigger  *fakeTrigger
	pub      *capturingPublisher
	locks    *SessionLocks
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()

	payloads, err := audiostore.New(t.TempDir())
	require.NoError(t, err)

	f := &ingestFixture{
		sessions: newMemSessionRepo(),
		chunks:   newMemChunkRepo(),
		payloads: payloads,
		trigger:  &fakeTrigger{},
		pub:      &capturingPublisher{},
		locks:    NewSessionLocks(),
	}
	f.svc = NewIngestService(f.sessions, f.chunks, payloads, f.trigger, f.locks, f.pub, newMemCache(), logger.New())
	return f
}

func TestIngestCreatesSessionAndMintsID(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("chunk-0"))
	require.NoError(t, err)
	require.NotEmpty(t, sess.SessionID)
	assert.Equal(t, models.StatusUploading, sess.Status)
	assert.Equal(t, int64(1), sess.ChunkCount)

	stored, err := f.payloads.ReadChunk(sess.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk-0"), stored)
}

func TestIngestUnknownProvisionalIDGetsServerID(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "rec-1724900000000", 0, false, []byte("a"))
	require.NoError(t, err)
	// the provisional id is not adopted; the server mints its own
	assert.NotEqual(t, "rec-1724900000000", sess.SessionID)

	// subsequent chunks under the assigned id land on the same session
	again, err := f.svc.Accept(ctx, "alice", sess.SessionID, 1, false, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, again.SessionID)
	assert.Equal(t, int64(2), again.ChunkCount)
}

func TestIngestIdempotentDuplicate(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("same-bytes"))
	require.NoError(t, err)

	again, err := f.svc.Accept(ctx, "alice", sess.SessionID, 0, false, []byte("same-bytes"))
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, again.SessionID)

	chunks, err := f.chunks.ListBySession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestIngestSequenceConflict(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("original"))
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, "alice", sess.SessionID, 0, false, []byte("different"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeConflict))

	// the original payload is untouched
	stored, err := f.payloads.ReadChunk(sess.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), stored)
}

func TestIngestConcurrentSameSequence(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("seed"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	payloads := [][]byte{[]byte("left"), []byte("right")}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(ctx, "alice", sess.SessionID, 1, false, payloads[i])
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, e := range errs {
		if e == nil {
			accepted++
		} else {
			assert.True(t, utils.IsCode(e, utils.CodeConflict))
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestIngestRejectsAfterFinal(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("a"))
	require.NoError(t, err)

	final, err := f.svc.Accept(ctx, "alice", sess.SessionID, 1, true, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingFinal, final.Status)
	assert.Equal(t, []string{sess.SessionID}, f.trigger.enqueued)

	_, err = f.svc.Accept(ctx, "alice", sess.SessionID, 2, false, []byte("c"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeConflict))
}

func TestIngestForbiddenForNonOwner(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("a"))
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, "mallory", sess.SessionID, 1, false, []byte("b"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))
}

func TestIngestEmptyPayloadOnlyAllowedWhenFinal(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	_, err := f.svc.Accept(ctx, "alice", "", 0, false, nil)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("a"))
	require.NoError(t, err)

	final, err := f.svc.Accept(ctx, "alice", sess.SessionID, 1, true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingFinal, final.Status)
}

func TestIngestEnqueueFailureMarksSessionFailed(t *testing.T) {
	f := newIngestFixture(t)
	f.trigger.err = errors.New("stream unavailable")
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, true, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessingFailed, sess.Status)
	assert.Contains(t, sess.LastError, "failed to enqueue processing")

	stored, err := f.sessions.GetBySessionID(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessingFailed, stored.Status)
}

// A delete can win the session lock between Accept resolving the session
// and entering the critical section. Admission must observe the deletion,
// not the pre-lock snapshot.
func TestIngestObservesDeleteWonRace(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("a"))
	require.NoError(t, err)
	id := sess.SessionID

	// hold the session lock so the next Accept parks after resolving
	unlock := f.locks.Lock(id)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Accept(ctx, "alice", id, 1, false, []byte("late"))
		done <- err
	}()

	// let the goroutine reach the lock, then delete while it waits
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, f.chunks.DeleteBySession(ctx, id))
	require.NoError(t, f.payloads.RemoveSession(id))
	require.NoError(t, f.sessions.SetStatus(ctx, id, models.StatusDeleted))
	unlock()

	err = <-done
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	// the deleted session gained no chunk record or payload file
	_, err = f.chunks.GetBySeq(ctx, id, 1)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	_, err = f.payloads.ReadChunk(id, 1)
	assert.Error(t, err)
}

func TestIngestDeletedSessionNotFound(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Accept(ctx, "alice", "", 0, false, []byte("a"))
	require.NoError(t, err)
	require.NoError(t, f.sessions.SetStatus(ctx, sess.SessionID, models.StatusDeleted))

	_, err = f.svc.Accept(ctx, "alice", sess.SessionID, 1, false, []byte("b"))
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}
