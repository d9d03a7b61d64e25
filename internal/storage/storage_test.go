package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), "http://localhost:3002", []byte("test-signing-key"))
	require.NoError(t, err)
	return store
}

func TestLocalStorePutAndDelete(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "uploads/a.txt", strings.NewReader("0123456789"), 10, "text/plain")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(store.root, "uploads", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	require.NoError(t, store.Delete(ctx, "uploads/a.txt"))
	_, err = os.Stat(filepath.Join(store.root, "uploads", "a.txt"))
	assert.True(t, os.IsNotExist(err))

	// Deleting twice is fine.
	assert.NoError(t, store.Delete(ctx, "uploads/a.txt"))
}

func TestLocalStorePutShortWrite(t *testing.T) {
	store := newTestLocalStore(t)

	err := store.Put(context.Background(), "uploads/short.txt", strings.NewReader("abc"), 10, "")
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(store.root, "uploads", "short.txt"))
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(filepath.Join(store.root, "tmp"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files are cleaned up")
}

func TestLocalStoreRejectsBadKeys(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	for _, key := range []string{"", "../escape.txt", "uploads/../../x", "/abs", "tmp/put-1"} {
		t.Run(key, func(t *testing.T) {
			err := store.Put(ctx, key, strings.NewReader("x"), 1, "")
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestLocalStoreSignedURLRoundTrip(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "uploads/k.bin", strings.NewReader("payload"), 7, ""))

	link, err := store.SignedURL(ctx, "uploads/k.bin", "report final.pdf", time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "http://localhost:3002/blob/"))

	token, err := url.PathUnescape(strings.TrimPrefix(link, "http://localhost:3002/blob/"))
	require.NoError(t, err)

	blob, err := store.Open(token)
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, "report final.pdf", blob.Name)
	assert.Equal(t, `attachment; filename="report final.pdf"`, blob.Disposition)
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalStoreSignedURLExpires(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "uploads/e.bin", strings.NewReader("x"), 1, ""))

	issued := time.Now()
	store.now = func() time.Time { return issued }
	link, err := store.SignedURL(ctx, "uploads/e.bin", "e.bin", time.Minute)
	require.NoError(t, err)
	token := strings.TrimPrefix(link, "http://localhost:3002/blob/")

	store.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = store.Open(token)
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestLocalStoreRejectsForeignSignature(t *testing.T) {
	store := newTestLocalStore(t)
	other, err := NewLocalStore(t.TempDir(), "http://localhost:3002", []byte("another-key"))
	require.NoError(t, err)

	link, err := other.SignedURL(context.Background(), "uploads/x.bin", "x.bin", time.Minute)
	require.NoError(t, err)

	_, err = store.Open(strings.TrimPrefix(link, "http://localhost:3002/blob/"))
	assert.ErrorIs(t, err, ErrInvalidLink)

	_, err = store.Open("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestNewLocalStoreGeneratesKey(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost/", nil)
	require.NoError(t, err)
	assert.Len(t, store.signingKey, 32)

	_, err = NewLocalStore("  ", "http://localhost/", nil)
	assert.Error(t, err)
}

func TestS3StoreSignedURL(t *testing.T) {
	store, err := NewS3Store(context.Background(), config.S3Config{
		Region:    "us-east-1",
		Bucket:    "file-shares",
		AccessKey: "AKIAEXAMPLE",
		SecretKey: "secret",
		Endpoint:  "http://localhost:9000",
	})
	require.NoError(t, err)

	link, err := store.SignedURL(context.Background(), "uploads/a.txt", "a.txt", time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/file-shares/uploads/a.txt", u.Path)

	q := u.Query()
	assert.Equal(t, "60", q.Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="a.txt"`, q.Get("response-content-disposition"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), config.S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.LocalPath = t.TempDir()
	cfg.Storage.SigningKey = "k"

	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	cfg.Storage.Backend = "ftp"
	_, err = New(context.Background(), cfg)
	assert.Error(t, err)
}
