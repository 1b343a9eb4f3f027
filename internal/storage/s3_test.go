package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lojavox/internal/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The ingestion path must accept the real S3 adapter, not just mocks.
var _ audio.ObjectStore = (*S3Storage)(nil)

func newTestS3(t *testing.T, handler http.HandlerFunc) *S3Storage {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewS3Storage(server.URL, "eu-west-1", "test-access", "test-secret", "lojavox-audio", server.URL)
	require.NoError(t, err)
	return store
}

func TestS3Upload_PutsObjectAndReturnsPublicURL(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte

	store := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		w.WriteHeader(http.StatusOK)
	})

	url, err := store.Upload(context.Background(), "audio/2026/08/31/abc.webm", []byte("fake audio"), "audio/webm")
	require.NoError(t, err)

	assert.Equal(t, "/lojavox-audio/audio/2026/08/31/abc.webm", gotPath)
	assert.Equal(t, "audio/webm", gotContentType)
	assert.Equal(t, []byte("fake audio"), gotBody)
	assert.True(t, strings.HasSuffix(url, "/lojavox-audio/audio/2026/08/31/abc.webm"))
}

func TestS3Upload_ErrorSurfaces(t *testing.T) {
	store := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<Error><Code>AccessDenied</Code></Error>`)
	})

	_, err := store.Upload(context.Background(), "audio/x.webm", []byte("x"), "audio/webm")
	assert.Error(t, err)
}

func TestGenerateAudioKey(t *testing.T) {
	store := &S3Storage{bucket: "lojavox-audio"}

	key := store.GenerateAudioKey("abc-123", ".webm")

	wantPrefix := fmt.Sprintf("audio/%s/", time.Now().Format("2006/01/02"))
	assert.True(t, strings.HasPrefix(key, wantPrefix), key)
	assert.True(t, strings.HasSuffix(key, "abc-123.webm"), key)
}

func TestIngestThroughS3(t *testing.T) {
	store := newTestS3(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/lojavox-audio/audio/"), r.URL.Path)
		assert.True(t, strings.HasSuffix(r.URL.Path, ".webm"), r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	ing := audio.NewIngestor(store)
	url, err := ing.Ingest(context.Background(), []byte("fake audio"), "audio/webm")
	require.NoError(t, err)
	assert.Contains(t, url, "/lojavox-audio/audio/")
}
