package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marianozunino/ezyshare/internal/storage"
)

// HandleBlob streams an object behind a signed retrieval link of the local
// storage backend.
func (h *Handler) HandleBlob(c echo.Context) error {
	if h.blobs == nil {
		return c.String(http.StatusNotFound, "Not found")
	}

	blob, err := h.blobs.Open(c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidLink):
			return c.String(http.StatusForbidden, "This download link is invalid or has expired")
		case errors.Is(err, fs.ErrNotExist):
			return c.String(http.StatusNotFound, "File not found")
		default:
			slog.Error("failed to open blob", "error", err)
			return c.String(http.StatusInternalServerError, "Server error")
		}
	}
	defer blob.Close()

	info, err := blob.Stat()
	if err != nil {
		slog.Error("failed to stat blob", "name", blob.Name, "error", err)
		return c.String(http.StatusInternalServerError, "Failed to stat file")
	}

	header := c.Response().Header()
	header.Set("Content-Disposition", blob.Disposition)
	header.Set("Cache-Control", "no-store")

	http.ServeContent(c.Response(), c.Request(), blob.Name, info.ModTime(), blob.File)
	return nil
}
