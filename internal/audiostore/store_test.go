package audiostore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReadChunk(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveChunk("s1", 0, []byte("hello")))

	got, err := s.ReadChunk("s1", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestAssembleConcatenatesInGivenOrder(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	// write out of order; assembly order is what counts
	require.NoError(t, s.SaveChunk("s1", 2, []byte("cc")))
	require.NoError(t, s.SaveChunk("s1", 0, []byte("aa")))
	require.NoError(t, s.SaveChunk("s1", 1, []byte("bb")))

	var buf bytes.Buffer
	require.NoError(t, s.Assemble("s1", []int64{0, 1, 2}, &buf))
	assert.Equal(t, "aabbcc", buf.String())
}

func TestAssembleMissingChunkFails(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.SaveChunk("s1", 0, []byte("aa")))

	var buf bytes.Buffer
	err = s.Assemble("s1", []int64{0, 1}, &buf)
	assert.Error(t, err)
}

func TestRemoveSession(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	require.NoError(t, s.SaveChunk("s1", 0, []byte("aa")))
	require.NoError(t, s.RemoveSession("s1"))

	_, err = os.Stat(filepath.Join(root, "s1"))
	assert.True(t, os.IsNotExist(err))

	// removing twice is fine
	require.NoError(t, s.RemoveSession("s1"))
}
