package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/marianozunino/ezyshare/internal/share"
	"github.com/marianozunino/ezyshare/internal/utils"
	"github.com/marianozunino/ezyshare/templates"
)

type pinRequest struct {
	Pin string `json:"pin" form:"pin"`
}

type pinLookupResponse struct {
	FileID      string `json:"fileId"`
	DownloadURL string `json:"downloadUrl"`
}

// HandleGetShare returns the public part of a live share.
func (h *Handler) HandleGetShare(c echo.Context) error {
	pub, err := h.shares.Lookup(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, pub)
}

// HandleVerify checks a PIN and returns the unlocked payload.
func (h *Handler) HandleVerify(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return h.apiError(c, share.ErrMalformedPin)
	}

	grant, err := h.shares.Verify(c.Request().Context(), c.Param("id"), strings.TrimSpace(req.Pin), c.RealIP())
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

// HandleFindByPin resolves a PIN without an id.
func (h *Handler) HandleFindByPin(c echo.Context) error {
	var req pinRequest
	if err := c.Bind(&req); err != nil {
		return h.apiError(c, share.ErrMalformedPin)
	}

	id, err := h.shares.FindByPin(c.Request().Context(), strings.TrimSpace(req.Pin), c.RealIP())
	if err != nil {
		return h.apiError(c, err)
	}
	return c.JSON(http.StatusOK, pinLookupResponse{
		FileID:      id,
		DownloadURL: share.ShareURL(h.shares.BaseURL(), id),
	})
}

// HandleDownloadPage shows the PIN prompt for a share. A ?pin= query value
// is verified right away, except for link preview bots.
func (h *Handler) HandleDownloadPage(c echo.Context) error {
	id := c.Param("id")
	pin := c.QueryParam("pin")
	if pin != "" && h.isLinkPreviewBot(c.Request()) {
		pin = ""
	}

	r := h.shares.NewRetrieval(c.RealIP())
	err := r.Open(c.Request().Context(), id, pin)
	return h.renderRetrieval(c, id, r, err)
}

// HandleDownloadSubmit verifies the PIN typed into the download page.
func (h *Handler) HandleDownloadSubmit(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	r := h.shares.NewRetrieval(c.RealIP())
	err := r.Open(ctx, id, "")
	if err == nil {
		_, err = r.SubmitPin(ctx, strings.TrimSpace(c.FormValue("pin")))
	}
	return h.renderRetrieval(c, id, r, err)
}

func (h *Handler) renderRetrieval(c echo.Context, id string, r *share.Retrieval, err error) error {
	view := templates.DownloadView{
		ID:    id,
		Share: r.Share(),
		Grant: r.Grant(),
		Now:   h.now(),
	}

	status := http.StatusOK
	if err != nil {
		status, view.Error = errorStatus(err)
		logFailure(c, status, err)
		view.NotFound = r.State() == share.NotFound
	}
	if view.Grant != nil {
		c.Response().Header().Set("Cache-Control", "no-store")
	}
	return h.render(c, status, templates.DownloadPage(view))
}

// HandleReceivePage serves the manual entry form.
func (h *Handler) HandleReceivePage(c echo.Context) error {
	return h.render(c, http.StatusOK, templates.ReceivePage(templates.ReceiveView{
		FileID: c.QueryParam("fileId"),
	}))
}

// HandleReceiveSubmit sends the consumer to the download page of the share
// named by id, pasted link or, when both are missing, the PIN alone.
func (h *Handler) HandleReceiveSubmit(c echo.Context) error {
	input := c.FormValue("fileId")
	pin := strings.TrimSpace(c.FormValue("pin"))
	id := share.ExtractID(input)

	fail := func(err error) error {
		status, msg := errorStatus(err)
		logFailure(c, status, err)
		return h.render(c, status, templates.ReceivePage(templates.ReceiveView{FileID: input, Error: msg}))
	}

	if id == "" {
		found, err := h.shares.FindByPin(c.Request().Context(), pin, c.RealIP())
		if err != nil {
			return fail(err)
		}
		id = found
	}

	target := templates.DownloadAction(id)
	if pin != "" {
		if !utils.IsPin(pin) {
			return fail(share.ErrMalformedPin)
		}
		target += "?pin=" + url.QueryEscape(pin)
	}
	return c.Redirect(http.StatusSeeOther, target)
}
