package audiostore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is the on-disk holding area for in-flight chunk payloads, one
// directory per session. Assembly concatenates the chunk files in sequence
// order, which reproduces the capture because the client slices disjoint
// segments.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) chunkPath(sessionID string, seq int64) string {
	return filepath.Join(s.root, sessionID, fmt.Sprintf("chunk_%06d", seq))
}

// SaveChunk writes the payload for one sequence number. Overwrites are
// harmless: the caller only re-writes identical bytes (idempotent re-upload).
func (s *Store) SaveChunk(sessionID string, seq int64, data []byte) error {
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.chunkPath(sessionID, seq), data, 0o644)
}

// ReadChunk returns the payload stored for one sequence number.
func (s *Store) ReadChunk(sessionID string, seq int64) ([]byte, error) {
	return os.ReadFile(s.chunkPath(sessionID, seq))
}

// Assemble streams the session's chunks into w in the given sequence order.
func (s *Store) Assemble(sessionID string, seqs []int64, w io.Writer) error {
	for _, seq := range seqs {
		f, err := os.Open(s.chunkPath(sessionID, seq))
		if err != nil {
			return fmt.Errorf("open chunk %d: %w", seq, err)
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("copy chunk %d: %w", seq, err)
		}
	}
	return nil
}

// RemoveSession deletes every chunk payload held for the session.
func (s *Store) RemoveSession(sessionID string) error {
	return os.RemoveAll(filepath.Join(s.root, sessionID))
}
