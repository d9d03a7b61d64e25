package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marianozunino/ezyshare/internal/share"
	"github.com/marianozunino/ezyshare/templates"
)

type textRequest struct {
	Text string `json:"text" form:"text"`
}

// HandleShareFile accepts a multipart upload in field "file".
func (h *Handler) HandleShareFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		if status, _ := errorStatus(err); status != http.StatusRequestEntityTooLarge {
			err = share.ErrEmptyInput
		}
		return h.shareError(c, templates.PanelUpload, "", err)
	}

	open := func() (io.ReadCloser, error) {
		return fh.Open()
	}
	desc, err := h.shares.ShareFile(c.Request().Context(), fh.Filename, fh.Size, fh.Header.Get(echo.HeaderContentType), open)
	if err != nil {
		return h.shareError(c, templates.PanelUpload, "", err)
	}
	return h.shareResult(c, desc)
}

// HandleShareText accepts "text" as a form field or JSON.
func (h *Handler) HandleShareText(c echo.Context) error {
	var req textRequest
	if err := c.Bind(&req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return h.shareError(c, templates.PanelText, "", share.ErrSizeExceeded)
		}
		return h.shareError(c, templates.PanelText, "", share.ErrEmptyInput)
	}

	desc, err := h.shares.ShareText(c.Request().Context(), req.Text)
	if err != nil {
		return h.shareError(c, templates.PanelText, req.Text, err)
	}
	return h.shareResult(c, desc)
}
