package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (w *recordingWriter) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(b))
	copy(cp, b)
	w.frames = append(w.frames, cp)
	return w.err
}

func (w *recordingWriter) all() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.frames...)
}

func TestForwardStatusRelaysAndStopsOnPeerClose(t *testing.T) {
	w := &recordingWriter{}
	msgs := make(chan *redis.Message, 1)
	readDone := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		forwardStatus(context.Background(), w, msgs, readDone)
	}()

	msgs <- &redis.Message{Payload: `{"status":"processing"}`}
	require.Eventually(t, func() bool {
		return len(w.all()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, `{"status":"processing"}`, string(w.all()[0]))

	// the peer hanging up must end the loop even with no events pending
	close(readDone)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarding loop did not stop after peer close")
	}
}

func TestForwardStatusStopsWhenSubscriptionCloses(t *testing.T) {
	w := &recordingWriter{}
	msgs := make(chan *redis.Message)
	close(msgs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		forwardStatus(context.Background(), w, msgs, make(chan struct{}))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarding loop did not stop after subscription close")
	}
	assert.Empty(t, w.all())
}

func TestForwardStatusStopsOnWriteFailure(t *testing.T) {
	w := &recordingWriter{err: assert.AnError}
	msgs := make(chan *redis.Message, 1)
	msgs <- &redis.Message{Payload: "x"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		forwardStatus(context.Background(), w, msgs, make(chan struct{}))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarding loop did not stop after write failure")
	}
}
