package share

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/utils"
)

type RetrievalState int

const (
	Loading RetrievalState = iota
	NotFound
	AwaitingPin
	Verifying
	Granted
)

func (s RetrievalState) String() string {
	switch s {
	case Loading:
		return "loading"
	case NotFound:
		return "not found"
	case AwaitingPin:
		return "awaiting pin"
	case Verifying:
		return "verifying"
	case Granted:
		return "granted"
	default:
		return fmt.Sprintf("RetrievalState(%d)", int(s))
	}
}

// Retrieval is one consumer's attempt to unlock a share. The stored PIN stays
// inside the Retrieval; callers only ever see PublicShare until Granted.
type Retrieval struct {
	svc       *Service
	client    string
	state     RetrievalState
	share     *model.Share
	grant     *model.Grant
	autoTried bool
	denials   int
}

func (r *Retrieval) State() RetrievalState { return r.state }

// Denials counts wrong PINs submitted through this retrieval.
func (r *Retrieval) Denials() int { return r.denials }

// Share returns the public view of the loaded share, or nil.
func (r *Retrieval) Share() *model.PublicShare {
	if r.share == nil {
		return nil
	}
	pub := r.share.Public()
	return &pub
}

// Grant returns the unlocked payload once Granted.
func (r *Retrieval) Grant() *model.Grant { return r.grant }

// Open loads the share with id. When autoPin has the length of a PIN it is
// submitted once without further action from the caller.
func (r *Retrieval) Open(ctx context.Context, id, autoPin string) error {
	if r.state != Loading || r.share != nil {
		return &errInvalidState{op: "open", state: r.state.String()}
	}

	share, err := r.svc.backend.FetchByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		r.state = NotFound
		return ErrNotFound
	}
	if err != nil {
		slog.Error("failed to load share", "id", id, "error", err)
		return err
	}

	r.share = share
	r.state = AwaitingPin

	if len(autoPin) == utils.PinLength && !r.autoTried {
		r.autoTried = true
		_, err := r.SubmitPin(ctx, autoPin)
		return err
	}
	return nil
}

// SubmitPin checks candidate against the loaded share. A wrong PIN leaves the
// retrieval in AwaitingPin so another attempt can be made.
func (r *Retrieval) SubmitPin(ctx context.Context, candidate string) (*model.Grant, error) {
	if r.state != AwaitingPin {
		return nil, &errInvalidState{op: "submitting a PIN", state: r.state.String()}
	}
	if !utils.IsPin(candidate) {
		pinVerifications.WithLabelValues(resultMalformed).Inc()
		return nil, ErrMalformedPin
	}

	key := r.share.ID + "|" + r.client
	now := r.svc.backend.Now()
	if !r.svc.limiter.Allow(key, now) {
		pinVerifications.WithLabelValues(resultThrottled).Inc()
		slog.Warn("pin attempts throttled", "id", r.share.ID, "client", r.client)
		return nil, ErrTooManyAttempts
	}

	r.state = Verifying

	if !r.share.Live(now) {
		r.state = NotFound
		pinVerifications.WithLabelValues(resultNotFound).Inc()
		return nil, ErrNotFound
	}

	if subtle.ConstantTimeCompare([]byte(candidate), []byte(r.share.Pin)) != 1 {
		r.svc.limiter.RegisterFailure(key, now)
		pinVerifications.WithLabelValues(resultDenied).Inc()
		r.denials++
		r.state = AwaitingPin
		return nil, ErrInvalidPin
	}
	r.svc.limiter.Reset(key)

	grant := &model.Grant{
		FileID:       r.share.ID,
		Kind:         r.share.Kind,
		OriginalName: r.share.DisplayName,
		FileSize:     r.share.SizeBytes,
	}
	if r.share.IsText() {
		grant.TextContent = r.share.Text()
	} else {
		link, err := r.svc.backend.CreateRetrievalURL(ctx, r.share.StorageLocator, r.share.DisplayName)
		if err != nil {
			slog.Error("failed to sign retrieval url", "id", r.share.ID, "error", err)
			r.state = AwaitingPin
			return nil, err
		}
		grant.DownloadURL = link
	}

	r.svc.backend.IncrementDownloadCount(ctx, r.share.ID)
	pinVerifications.WithLabelValues(resultGranted).Inc()

	r.grant = grant
	r.state = Granted
	return grant, nil
}
