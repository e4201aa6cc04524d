package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/calmwave/calmwave/internal/events"
	"github.com/calmwave/calmwave/internal/models"
	"github.com/calmwave/calmwave/internal/utils"
)

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*models.Session{}}
}

func (r *memSessionRepo) Create(ctx context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.SessionID]; ok {
		return errors.New("duplicate session_id")
	}
	cp := *s
	r.sessions[s.SessionID] = &cp
	return nil
}

func (r *memSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) ListByOwner(ctx context.Context, userID string) ([]models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status != models.StatusDeleted {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) update(sessionID string, fn func(*models.Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return utils.ErrNotFound
	}
	fn(s)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memSessionRepo) SetStatus(ctx context.Context, sessionID, status string) error {
	return r.update(sessionID, func(s *models.Session) { s.Status = status })
}

func (r *memSessionRepo) SetChunkCount(ctx context.Context, sessionID string, count int64) error {
	return r.update(sessionID, func(s *models.Session) { s.ChunkCount = count })
}

func (r *memSessionRepo) SetProcessed(ctx context.Context, sessionID, artifactPath string) error {
	return r.update(sessionID, func(s *models.Session) {
		s.Status = models.StatusProcessed
		s.ArtifactPath = artifactPath
		s.LastError = ""
	})
}

func (r *memSessionRepo) SetFailed(ctx context.Context, sessionID, lastError string) error {
	return r.update(sessionID, func(s *models.Session) {
		s.Status = models.StatusProcessingFailed
		s.LastError = lastError
	})
}

type memChunkRepo struct {
	mu     sync.Mutex
	chunks map[string][]*models.Chunk // by session
}

func newMemChunkRepo() *memChunkRepo {
	return &memChunkRepo{chunks: map[string][]*models.Chunk{}}
}

func (r *memChunkRepo) Insert(ctx context.Context, c *models.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.chunks[c.SessionID] {
		if e.Seq == c.Seq {
			return errors.New("duplicate sequence")
		}
	}
	cp := *c
	r.chunks[c.SessionID] = append(r.chunks[c.SessionID], &cp)
	return nil
}

func (r *memChunkRepo) GetBySeq(ctx context.Context, sessionID string, seq int64) (*models.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.chunks[sessionID] {
		if e.Seq == seq {
			cp := *e
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *memChunkRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Chunk
	for _, e := range r.chunks[sessionID] {
		out = append(out, *e)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Seq > out[j].Seq; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out, nil
}

func (r *memChunkRepo) FinalChunk(ctx context.Context, sessionID string) (*models.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.chunks[sessionID] {
		if e.IsFinal {
			cp := *e
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *memChunkRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chunks, sessionID)
	return nil
}

type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemCache() *memCache { return &memCache{m: map[string][]byte{}} }

func (c *memCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = b
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.m, k)
	}
	return nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.StatusEvent
}

func (p *capturingPublisher) PublishStatus(ctx context.Context, ev events.StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type fakeTrigger struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (t *fakeTrigger) EnqueueProcessing(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.enqueued = append(t.enqueued, sessionID)
	return nil
}

type fakeEnhancer struct {
	err   error
	delay time.Duration
	fn    func(audio []byte) []byte
}

func (e *fakeEnhancer) Enhance(ctx context.Context, sessionID string, audio []byte) ([]byte, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	if e.fn != nil {
		return e.fn(audio), nil
	}
	return append([]byte("enhanced:"), audio...), nil
}

// memStore is an in-memory artifact store.
type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore { return &memStore{m: map[string][]byte{}} }

func (s *memStore) Put(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := "mem://" + objectName
	s.m[path] = b
	return path, nil
}

func (s *memStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[objectName]
	if !ok {
		return nil, fmt.Errorf("object %q not found", objectName)
	}
	return io.NopCloser(strings.NewReader(string(b))), nil
}

func (s *memStore) Delete(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, objectName)
	return nil
}
