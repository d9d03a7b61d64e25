package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/marianozunino/ezyshare/internal/config"
	"github.com/marianozunino/ezyshare/internal/share"
	"github.com/marianozunino/ezyshare/internal/storage"
)

// BlobOpener resolves signed retrieval tokens of the local storage backend.
type BlobOpener interface {
	Open(token string) (*storage.Blob, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler handles HTTP requests
type Handler struct {
	shares *share.Service
	blobs  BlobOpener
	db     Pinger
	cfg    *config.Config
	now    func() time.Time
}

// NewHandler creates a new handler. blobs may be nil when signed links are
// served by an external object store.
func NewHandler(shares *share.Service, cfg *config.Config, db Pinger, blobs BlobOpener) *Handler {
	return &Handler{
		shares: shares,
		blobs:  blobs,
		db:     db,
		cfg:    cfg,
		now:    time.Now,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// errorStatus maps a flow error onto an HTTP status and a message that is
// safe to show to users.
func errorStatus(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, share.ErrSizeExceeded):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, echo.ErrStatusRequestEntityTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, share.ErrSizeExceeded.Error()
	case errors.Is(err, share.ErrEmptyInput), errors.Is(err, share.ErrMalformedPin):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, share.ErrNotFound):
		return http.StatusNotFound, share.ErrNotFound.Error()
	case errors.Is(err, share.ErrInvalidPin):
		return http.StatusForbidden, share.ErrInvalidPin.Error()
	case errors.Is(err, share.ErrTooManyAttempts):
		return http.StatusTooManyRequests, share.ErrTooManyAttempts.Error()
	case errors.Is(err, share.ErrUploadFailed):
		return http.StatusInternalServerError, share.ErrUploadFailed.Error()
	default:
		return http.StatusInternalServerError, "Something went wrong, please try again"
	}
}

func (h *Handler) apiError(c echo.Context, err error) error {
	status, msg := errorStatus(err)
	logFailure(c, status, err)
	return c.JSON(status, errorResponse{Error: msg})
}

func logFailure(c echo.Context, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	slog.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"status", status,
		"error", err,
	)
}

// wantsHTML reports whether the client is a browser submitting a form.
func wantsHTML(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

func (h *Handler) render(c echo.Context, status int, page templ.Component) error {
	var buf bytes.Buffer
	if err := page.Render(c.Request().Context(), &buf); err != nil {
		return c.String(http.StatusInternalServerError, fmt.Sprintf("Error rendering template: %v", err))
	}
	return c.HTMLBlob(status, buf.Bytes())
}

// isLinkPreviewBot determines if the request is likely from a preview bot.
// Chat apps unfurl pasted links, which must not unlock a share on the
// recipient's behalf.
func (h *Handler) isLinkPreviewBot(req *http.Request) bool {
	userAgent := strings.ToLower(req.Header.Get("User-Agent"))

	bots := h.cfg.PreviewBots
	if len(bots) == 0 {
		bots = config.DefaultPreviewBots
	}
	for _, bot := range bots {
		if bot != "" && strings.Contains(userAgent, strings.ToLower(bot)) {
			slog.Debug("preview bot detected", "user_agent", req.Header.Get("User-Agent"))
			return true
		}
	}

	return req.Header.Get("X-Purpose") == "preview" || req.Header.Get("Purpose") == "prefetch"
}
