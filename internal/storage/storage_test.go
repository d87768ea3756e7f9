package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	logger := zerolog.Nop()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "uploads"), "http://localhost:8083/", &logger)
	require.NoError(t, err)
	return s
}

func TestLocalStorage_Upload(t *testing.T) {
	s := newLocal(t)

	url, err := s.Upload(context.Background(), strings.NewReader("fake mp4 bytes"), "../../etc/Holiday.MP4", "video/mp4")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8083/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, ".mp4"))

	name := strings.TrimPrefix(url, "http://localhost:8083/uploads/")
	assert.NotContains(t, name, "Holiday")
	data, err := os.ReadFile(filepath.Join(s.UploadDir, name))
	require.NoError(t, err)
	assert.Equal(t, "fake mp4 bytes", string(data))
}

func TestLocalStorage_CancelledLeavesNothing(t *testing.T) {
	s := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Upload(ctx, strings.NewReader("data"), "a.mp4", "video/mp4")
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(s.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "pending file cleaned up")
}

func TestS3Storage_NotConfigured(t *testing.T) {
	var s Storage = NewS3Storage("bucket", "eu-west-1")
	_, err := s.Upload(context.Background(), strings.NewReader("x"), "a.mp4", "video/mp4")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
