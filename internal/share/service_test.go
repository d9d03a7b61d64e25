package share_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/gateway"
	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/share"
	"github.com/marianozunino/ezyshare/internal/storage"
	"github.com/marianozunino/ezyshare/internal/testutil"
	"github.com/marianozunino/ezyshare/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://localhost:3002/"

type countingBackend struct {
	share.Backend
	stores     int
	increments int
	storeErr   error
}

func (b *countingBackend) Store(ctx context.Context, s *model.Share, payload io.Reader) error {
	b.stores++
	if b.storeErr != nil {
		return b.storeErr
	}
	return b.Backend.Store(ctx, s, payload)
}

func (b *countingBackend) IncrementDownloadCount(ctx context.Context, id string) {
	b.increments++
	b.Backend.IncrementDownloadCount(ctx, id)
}

type fixture struct {
	svc     *share.Service
	backend *countingBackend
	gw      *gateway.Gateway
	store   *storage.LocalStore
	now     time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T, attempts config.PinAttemptConfig) *fixture {
	t.Helper()

	f := &fixture{now: time.Now()}
	f.store = testutil.NewTestStore(t)
	f.gw = gateway.New(testutil.NewTestDB(t), f.store, time.Minute)
	f.gw.SetClock(func() time.Time { return f.now })
	f.backend = &countingBackend{Backend: f.gw}
	f.svc = share.NewService(f.backend, share.Options{
		BaseURL:   baseURL,
		MaxSize:   25 * 1024 * 1024,
		Retention: 24 * time.Hour,
		Attempts:  attempts,
	})
	return f
}

func noThrottle() config.PinAttemptConfig {
	return config.PinAttemptConfig{}
}

func TestShareFile(t *testing.T) {
	f := newFixture(t, noThrottle())

	desc, err := f.svc.ShareFile(context.Background(), "a.txt", 10, "text/plain", share.BytesOpener([]byte("0123456789")))
	require.NoError(t, err)

	assert.Equal(t, int64(10), desc.FileSize)
	assert.Equal(t, "a.txt", desc.OriginalName)
	assert.True(t, utils.IsPin(desc.PinCode))
	assert.True(t, strings.HasSuffix(desc.DownloadURL, "/download/"+desc.FileID))
	assert.Equal(t, "http://localhost:3002/download/"+desc.FileID, desc.DownloadURL)
	assert.Equal(t, desc.DownloadURL+"?pin="+desc.PinCode, desc.QRPayload)
	assert.True(t, strings.HasPrefix(desc.QRCode, "data:image/png;base64,"))
	assert.False(t, desc.IsText)
	assert.Empty(t, desc.TextContent)
	assert.Equal(t, 24*time.Hour, desc.ExpiresAt.Sub(f.now))
}

func TestShareFileSizeExceeded(t *testing.T) {
	f := newFixture(t, noThrottle())

	_, err := f.svc.ShareFile(context.Background(), "big.bin", 26*1024*1024, "", func() (io.ReadCloser, error) {
		t.Fatal("payload must not be opened")
		return nil, nil
	})
	assert.ErrorIs(t, err, share.ErrSizeExceeded)
	assert.Zero(t, f.backend.stores, "no backend call for oversized files")
}

func TestShareFileAtLimit(t *testing.T) {
	f := newFixture(t, noThrottle())
	p := f.svc.NewProducer()

	require.NoError(t, p.SelectFile("exact.bin", f.svc.MaxSize(), "", share.BytesOpener(nil)))
	assert.Equal(t, share.PayloadSelected, p.State())
}

func TestShareFileDetectsContentType(t *testing.T) {
	f := newFixture(t, noThrottle())
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

	desc, err := f.svc.ShareFile(context.Background(), "pixel", int64(len(png)), "application/octet-stream", share.BytesOpener(png))
	require.NoError(t, err)

	pub, err := f.svc.Lookup(context.Background(), desc.FileID)
	require.NoError(t, err)
	assert.Equal(t, "image/png", pub.ContentType)
}

func TestShareTextRoundTrip(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, desc.IsText)
	assert.Equal(t, model.TextDisplayName, desc.OriginalName)
	assert.Equal(t, int64(5), desc.FileSize)

	r := f.svc.NewRetrieval("client-1")
	require.NoError(t, r.Open(ctx, desc.FileID, ""))
	assert.Equal(t, share.AwaitingPin, r.State())
	assert.Equal(t, model.KindText, r.Share().Kind)

	grant, err := r.SubmitPin(ctx, desc.PinCode)
	require.NoError(t, err)
	assert.Equal(t, share.Granted, r.State())
	assert.Equal(t, "hello", grant.TextContent)
	assert.Empty(t, grant.DownloadURL)
	assert.Equal(t, 1, f.backend.increments)
}

func TestShareTextEmpty(t *testing.T) {
	f := newFixture(t, noThrottle())

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.ShareText(context.Background(), text)
		assert.ErrorIs(t, err, share.ErrEmptyInput)
	}
	assert.Zero(t, f.backend.stores)
}

func TestVerifyFileGrantsSignedURL(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareFile(ctx, "a.txt", 10, "text/plain", share.BytesOpener([]byte("0123456789")))
	require.NoError(t, err)

	grant, err := f.svc.Verify(ctx, desc.FileID, desc.PinCode, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", grant.OriginalName)
	require.True(t, strings.HasPrefix(grant.DownloadURL, baseURL+"blob/"))

	blob, err := f.store.Open(strings.TrimPrefix(grant.DownloadURL, baseURL+"blob/"))
	require.NoError(t, err)
	defer blob.Close()
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	stored, err := f.gw.FetchByID(ctx, desc.FileID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.DownloadCount)
}

func TestWrongPin(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "secret")
	require.NoError(t, err)

	r := f.svc.NewRetrieval("client-1")
	require.NoError(t, r.Open(ctx, desc.FileID, ""))

	wrong := "100000"
	if desc.PinCode == wrong {
		wrong = "100001"
	}
	_, err = r.SubmitPin(ctx, wrong)
	assert.ErrorIs(t, err, share.ErrInvalidPin)
	assert.Equal(t, share.AwaitingPin, r.State())
	assert.Equal(t, 1, r.Denials())
	assert.Nil(t, r.Grant())
	assert.Zero(t, f.backend.increments)

	grant, err := r.SubmitPin(ctx, desc.PinCode)
	require.NoError(t, err)
	assert.Equal(t, "secret", grant.TextContent)
	assert.Equal(t, 1, f.backend.increments)
}

func TestMalformedPinIsRejectedLocally(t *testing.T) {
	f := newFixture(t, config.PinAttemptConfig{MaxFailures: 1, WindowMinutes: 15, BlockMinutes: 15})
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "x")
	require.NoError(t, err)

	r := f.svc.NewRetrieval("client-1")
	require.NoError(t, r.Open(ctx, desc.FileID, ""))

	for _, pin := range []string{"", "12345", "1234567", "12a456", " 123456"} {
		_, err := r.SubmitPin(ctx, pin)
		assert.ErrorIs(t, err, share.ErrMalformedPin, pin)
		assert.Equal(t, share.AwaitingPin, r.State())
	}

	// Malformed input does not count as a failed attempt.
	_, err = r.SubmitPin(ctx, desc.PinCode)
	assert.NoError(t, err)
}

func TestExpiredShareIsNotFound(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "hello")
	require.NoError(t, err)

	f.advance(24*time.Hour + time.Second)

	r := f.svc.NewRetrieval("client-1")
	err = r.Open(ctx, desc.FileID, desc.PinCode)
	assert.ErrorIs(t, err, share.ErrNotFound)
	assert.Equal(t, share.NotFound, r.State())

	_, err = f.svc.Verify(ctx, desc.FileID, desc.PinCode, "client-1")
	assert.ErrorIs(t, err, share.ErrNotFound)
	assert.Zero(t, f.backend.increments)
}

func TestShareExpiresWhileAwaitingPin(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "hello")
	require.NoError(t, err)

	r := f.svc.NewRetrieval("client-1")
	require.NoError(t, r.Open(ctx, desc.FileID, ""))

	f.advance(25 * time.Hour)
	_, err = r.SubmitPin(ctx, desc.PinCode)
	assert.ErrorIs(t, err, share.ErrNotFound)
	assert.Equal(t, share.NotFound, r.State())
}

func TestUnknownShare(t *testing.T) {
	f := newFixture(t, noThrottle())

	_, err := f.svc.Lookup(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, share.ErrNotFound)
}

func TestAutoVerify(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "auto")
	require.NoError(t, err)

	r := f.svc.NewRetrieval("client-1")
	require.NoError(t, r.Open(ctx, desc.FileID, desc.PinCode))
	assert.Equal(t, share.Granted, r.State())
	assert.Equal(t, "auto", r.Grant().TextContent)
	assert.Equal(t, 1, f.backend.increments)

	// Opening again is not allowed, so auto-verify cannot repeat.
	assert.Error(t, r.Open(ctx, desc.FileID, desc.PinCode))
	assert.Equal(t, 1, f.backend.increments)
}

func TestAutoVerifyWrongPin(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "auto")
	require.NoError(t, err)

	wrong := "999999"
	if desc.PinCode == wrong {
		wrong = "999998"
	}

	r := f.svc.NewRetrieval("client-1")
	err = r.Open(ctx, desc.FileID, wrong)
	assert.ErrorIs(t, err, share.ErrInvalidPin)
	assert.Equal(t, share.AwaitingPin, r.State())
}

func TestAutoVerifyIgnoresShortPin(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "auto")
	require.NoError(t, err)

	r := f.svc.NewRetrieval("client-1")
	require.NoError(t, r.Open(ctx, desc.FileID, "123"))
	assert.Equal(t, share.AwaitingPin, r.State())
	assert.Zero(t, r.Denials())
}

func TestIncrementExactlyOncePerGrant(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "count me")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Verify(ctx, desc.FileID, desc.PinCode, "client-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.backend.increments)

	stored, err := f.gw.FetchByID(ctx, desc.FileID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stored.DownloadCount)
}

func TestThrottling(t *testing.T) {
	f := newFixture(t, config.PinAttemptConfig{MaxFailures: 3, WindowMinutes: 15, BlockMinutes: 10})
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "guarded")
	require.NoError(t, err)

	wrong := "111111"
	if desc.PinCode == wrong {
		wrong = "222222"
	}

	for i := 0; i < 3; i++ {
		_, err := f.svc.Verify(ctx, desc.FileID, wrong, "attacker")
		assert.ErrorIs(t, err, share.ErrInvalidPin)
	}

	_, err = f.svc.Verify(ctx, desc.FileID, desc.PinCode, "attacker")
	assert.ErrorIs(t, err, share.ErrTooManyAttempts)

	// Other clients are unaffected.
	_, err = f.svc.Verify(ctx, desc.FileID, desc.PinCode, "friend")
	assert.NoError(t, err)

	f.advance(11 * time.Minute)
	_, err = f.svc.Verify(ctx, desc.FileID, desc.PinCode, "attacker")
	assert.NoError(t, err)
}

func TestThrottlingWindowResets(t *testing.T) {
	f := newFixture(t, config.PinAttemptConfig{MaxFailures: 2, WindowMinutes: 5, BlockMinutes: 5})
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "guarded")
	require.NoError(t, err)

	wrong := "111111"
	if desc.PinCode == wrong {
		wrong = "222222"
	}

	_, err = f.svc.Verify(ctx, desc.FileID, wrong, "c")
	assert.ErrorIs(t, err, share.ErrInvalidPin)

	f.advance(6 * time.Minute)
	_, err = f.svc.Verify(ctx, desc.FileID, wrong, "c")
	assert.ErrorIs(t, err, share.ErrInvalidPin)

	// The first failure fell out of the window, so this is not blocked.
	_, err = f.svc.Verify(ctx, desc.FileID, desc.PinCode, "c")
	assert.NoError(t, err)
}

func TestUnlimitedRetriesWhenDisabled(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "open")
	require.NoError(t, err)

	wrong := "111111"
	if desc.PinCode == wrong {
		wrong = "222222"
	}
	for i := 0; i < 20; i++ {
		_, err := f.svc.Verify(ctx, desc.FileID, wrong, "c")
		require.ErrorIs(t, err, share.ErrInvalidPin)
	}

	_, err = f.svc.Verify(ctx, desc.FileID, desc.PinCode, "c")
	assert.NoError(t, err)
}

func TestProducerRetryAfterFailure(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()
	f.backend.storeErr = gateway.ErrStorageFailure

	p := f.svc.NewProducer()
	assert.Equal(t, share.Idle, p.State())
	require.NoError(t, p.SelectFile("a.txt", 10, "text/plain", share.BytesOpener([]byte("0123456789"))))

	_, err := p.Submit(ctx)
	assert.ErrorIs(t, err, share.ErrUploadFailed)
	assert.ErrorIs(t, err, share.ErrStorageFailure)
	assert.Equal(t, share.Failed, p.State())
	require.NotNil(t, p.Payload())
	assert.Equal(t, "a.txt", p.Payload().Name)

	f.backend.storeErr = nil
	desc, err := p.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, share.Ready, p.State())
	assert.Equal(t, desc, p.Descriptor())
	assert.Equal(t, 2, f.backend.stores)

	// A finished producer does not accept a new payload until reset.
	assert.Error(t, p.SelectText("again"))
	p.Reset()
	assert.Equal(t, share.Idle, p.State())
	assert.Nil(t, p.Payload())
}

func TestProducerMetadataFailure(t *testing.T) {
	f := newFixture(t, noThrottle())
	f.backend.storeErr = gateway.ErrMetadataFailure

	_, err := f.svc.ShareText(context.Background(), "hello")
	assert.ErrorIs(t, err, share.ErrUploadFailed)
	assert.ErrorIs(t, err, share.ErrMetadataFailure)
}

func TestProducerOpenFailure(t *testing.T) {
	f := newFixture(t, noThrottle())

	_, err := f.svc.ShareFile(context.Background(), "a.txt", 10, "", func() (io.ReadCloser, error) {
		return nil, errors.New("gone")
	})
	assert.ErrorIs(t, err, share.ErrUploadFailed)
	assert.Zero(t, f.backend.stores)
}

func TestProducerSubmitWithoutPayload(t *testing.T) {
	f := newFixture(t, noThrottle())

	_, err := f.svc.NewProducer().Submit(context.Background())
	assert.Error(t, err)
	assert.Zero(t, f.backend.stores)
}

func TestFindByPin(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "by pin")
	require.NoError(t, err)

	id, err := f.svc.FindByPin(ctx, desc.PinCode, "c")
	require.NoError(t, err)
	assert.Equal(t, desc.FileID, id)

	_, err = f.svc.FindByPin(ctx, "12ab56", "c")
	assert.ErrorIs(t, err, share.ErrMalformedPin)

	miss := "100000"
	if desc.PinCode == miss {
		miss = "100001"
	}
	_, err = f.svc.FindByPin(ctx, miss, "c")
	assert.ErrorIs(t, err, share.ErrNotFound)
}

func TestFindByPinThrottled(t *testing.T) {
	f := newFixture(t, config.PinAttemptConfig{MaxFailures: 2, WindowMinutes: 15, BlockMinutes: 15})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.FindByPin(ctx, "100000", "scanner")
		assert.ErrorIs(t, err, share.ErrNotFound)
	}
	_, err := f.svc.FindByPin(ctx, "100000", "scanner")
	assert.ErrorIs(t, err, share.ErrTooManyAttempts)
}

func TestLookupHidesSecrets(t *testing.T) {
	f := newFixture(t, noThrottle())
	ctx := context.Background()

	desc, err := f.svc.ShareText(ctx, "top secret")
	require.NoError(t, err)

	pub, err := f.svc.Lookup(ctx, desc.FileID)
	require.NoError(t, err)
	assert.Equal(t, desc.FileID, pub.FileID)
	assert.Equal(t, model.TextDisplayName, pub.OriginalName)
	assert.Zero(t, f.backend.increments)
}
