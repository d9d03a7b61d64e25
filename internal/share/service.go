package share

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/utils"
)

// Backend is the persistence gateway as seen by the share flows.
// *gateway.Gateway implements it.
type Backend interface {
	Store(ctx context.Context, share *model.Share, payload io.Reader) error
	FetchByID(ctx context.Context, id string) (*model.Share, error)
	FetchByPin(ctx context.Context, pin string) (*model.Share, error)
	CreateRetrievalURL(ctx context.Context, locator, downloadName string) (string, error)
	IncrementDownloadCount(ctx context.Context, id string)
	Now() time.Time
}

type Options struct {
	BaseURL   string
	MaxSize   int64
	Retention time.Duration
	Attempts  config.PinAttemptConfig
}

// OptionsFromConfig maps the application config onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:   cfg.BaseURL,
		MaxSize:   cfg.MaxSizeToBytes(),
		Retention: cfg.Retention(),
		Attempts:  cfg.PinAttempt,
	}
}

// Service is the entry point for producing and retrieving shares.
type Service struct {
	backend   Backend
	baseURL   string
	maxSize   int64
	retention time.Duration
	limiter   *attemptLimiter
}

func NewService(backend Backend, opts Options) *Service {
	return &Service{
		backend:   backend,
		baseURL:   opts.BaseURL,
		maxSize:   opts.MaxSize,
		retention: opts.Retention,
		limiter:   newAttemptLimiter(opts.Attempts),
	}
}

// MaxSize is the largest payload accepted, in bytes.
func (s *Service) MaxSize() int64 { return s.maxSize }

// BaseURL is the origin share URLs are built from.
func (s *Service) BaseURL() string { return s.baseURL }

func (s *Service) NewProducer() *Producer {
	return &Producer{svc: s, state: Idle}
}

// NewRetrieval starts a retrieval on behalf of client, which keys throttling.
func (s *Service) NewRetrieval(client string) *Retrieval {
	return &Retrieval{svc: s, client: client, state: Loading}
}

// ShareFile stores a file and returns its descriptor.
func (s *Service) ShareFile(ctx context.Context, name string, size int64, contentType string, open Opener) (*model.Descriptor, error) {
	p := s.NewProducer()
	if err := p.SelectFile(name, size, contentType, open); err != nil {
		return nil, err
	}
	return p.Submit(ctx)
}

// ShareText stores text inline and returns its descriptor.
func (s *Service) ShareText(ctx context.Context, text string) (*model.Descriptor, error) {
	p := s.NewProducer()
	if err := p.SelectText(text); err != nil {
		return nil, err
	}
	return p.Submit(ctx)
}

// Lookup returns what a consumer may see of a live share before entering the PIN.
func (s *Service) Lookup(ctx context.Context, id string) (*model.PublicShare, error) {
	r := s.NewRetrieval("")
	if err := r.Open(ctx, id, ""); err != nil {
		return nil, err
	}
	return r.Share(), nil
}

// Verify unlocks share id with pin.
func (s *Service) Verify(ctx context.Context, id, pin, client string) (*model.Grant, error) {
	r := s.NewRetrieval(client)
	if err := r.Open(ctx, id, ""); err != nil {
		return nil, err
	}
	return r.SubmitPin(ctx, pin)
}

// FindByPin resolves a PIN alone to the id of the most recent live share
// using it. Misses count against client like wrong PINs do.
func (s *Service) FindByPin(ctx context.Context, pin, client string) (string, error) {
	if !utils.IsPin(pin) {
		return "", ErrMalformedPin
	}

	key := "pin|" + client
	now := s.backend.Now()
	if !s.limiter.Allow(key, now) {
		pinVerifications.WithLabelValues(resultThrottled).Inc()
		return "", ErrTooManyAttempts
	}

	share, err := s.backend.FetchByPin(ctx, pin)
	if errors.Is(err, ErrNotFound) {
		s.limiter.RegisterFailure(key, now)
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return share.ID, nil
}
