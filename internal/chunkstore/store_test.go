package chunkstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutBoundsOutstandingFiles(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	var paths []string
	for seq := int64(0); seq < 5; seq++ {
		p, err := s.Put("s1", seq, []byte{byte(seq)})
		require.NoError(t, err)
		paths = append(paths, p)
		assert.LessOrEqual(t, s.Outstanding(), 2)
	}

	// only the last two chunk files survive
	for i, p := range paths {
		_, err := os.Stat(p)
		if i < 3 {
			assert.True(t, os.IsNotExist(err), "chunk %d should be evicted", i)
		} else {
			assert.NoError(t, err, "chunk %d should remain", i)
		}
	}
}

func TestPutWritesContent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	p, err := s.Put("s1", 0, []byte("payload"))
	require.NoError(t, err)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}

func TestClearRemovesOnlyThatSession(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	p1, err := s.Put("s1", 0, []byte("a"))
	require.NoError(t, err)
	p2, err := s.Put("s2", 0, []byte("b"))
	require.NoError(t, err)

	s.Clear("s1")

	_, err = os.Stat(p1)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p2)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Outstanding())
}
