package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servemehq/chat-api/internal/config"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	cfg := &config.Config{
		LocalStoragePath:    t.TempDir(),
		LocalStorageBaseURL: "http://localhost:8290/files",
	}
	store, err := NewLocalStorage(cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte("attachment bytes")
	key := "chat/alice/01J0000000000000000000000-photo.png"

	require.NoError(t, store.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), "image/png"))

	url, err := store.PublicURL(key)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8290/files/"+key, url)

	reader, err := store.Download(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	assert.NoError(t, store.Health(ctx))
}

func TestLocalStorageDisabledWithoutPath(t *testing.T) {
	store, err := NewLocalStorage(&config.Config{}, zerolog.Nop())
	require.NoError(t, err)

	err = store.Upload(context.Background(), "chat/a/b", bytes.NewReader([]byte("x")), 1, "text/plain")
	assert.Error(t, err)

	_, err = store.PublicURL("chat/a/b")
	assert.Error(t, err)

	// A disabled backend is intentionally healthy: the service runs without
	// attachments until storage is configured.
	assert.NoError(t, store.Health(context.Background()))
}

func TestLocalStorageFileURLWithoutBaseURL(t *testing.T) {
	cfg := &config.Config{LocalStoragePath: t.TempDir()}
	store, err := NewLocalStorage(cfg, zerolog.Nop())
	require.NoError(t, err)

	payload := []byte("x")
	require.NoError(t, store.Upload(context.Background(), "chat/a/file.bin", bytes.NewReader(payload), 1, "application/octet-stream"))

	url, err := store.PublicURL("chat/a/file.bin")
	require.NoError(t, err)
	assert.Contains(t, url, "file://")
}
