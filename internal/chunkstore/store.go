package chunkstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the on-device holding area for in-flight chunk files. Writing
// chunk N deletes chunk N-2 and older, so at most two chunk files exist at
// any time regardless of transfer outcomes.
type Store struct {
	root string

	mu          sync.Mutex
	outstanding []chunkRef
}

type chunkRef struct {
	sessionID string
	seq       int64
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(sessionID string, seq int64) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_chunk_%06d", sessionID, seq))
}

// Put durably writes one chunk and evicts superseded ones. Returns the path
// of the written file.
func (s *Store) Put(sessionID string, seq int64, data []byte) (string, error) {
	p := s.path(sessionID, seq)

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write chunk: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write chunk: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outstanding = append(s.outstanding, chunkRef{sessionID: sessionID, seq: seq})
	for len(s.outstanding) > 2 {
		old := s.outstanding[0]
		s.outstanding = s.outstanding[1:]
		_ = os.Remove(s.path(old.sessionID, old.seq))
	}
	return p, nil
}

// Clear removes every remaining chunk file for the session. Runs on all
// finalize exit paths, success or error.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.outstanding[:0]
	for _, ref := range s.outstanding {
		if ref.sessionID == sessionID {
			_ = os.Remove(s.path(ref.sessionID, ref.seq))
			continue
		}
		kept = append(kept, ref)
	}
	s.outstanding = kept
}

// Outstanding reports how many chunk files are currently held.
func (s *Store) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}
