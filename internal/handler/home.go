package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/templates"
)

func (h *Handler) homeView(panel string) templates.HomeView {
	return templates.HomeView{
		Panel:          panel,
		MaxSize:        h.shares.MaxSize(),
		RetentionHours: h.cfg.RetentionHours,
		Now:            h.now(),
	}
}

// HandleHome serves the homepage
func (h *Handler) HandleHome(c echo.Context) error {
	return h.render(c, http.StatusOK, templates.HomePage(h.homeView(templates.PanelFromQuery(c.QueryParams()))))
}

// shareResult answers a successful share as JSON, or with the result panel
// for browser form posts.
func (h *Handler) shareResult(c echo.Context, desc *model.Descriptor) error {
	if wantsHTML(c) {
		view := h.homeView(templates.PanelResult)
		view.Result = desc
		c.Response().Header().Set("Cache-Control", "no-store")
		return h.render(c, http.StatusOK, templates.HomePage(view))
	}
	return c.JSON(http.StatusCreated, desc)
}

// shareError keeps the producer on the panel it came from, with text input preserved.
func (h *Handler) shareError(c echo.Context, panel, text string, err error) error {
	if !wantsHTML(c) {
		return h.apiError(c, err)
	}
	status, msg := errorStatus(err)
	logFailure(c, status, err)

	view := h.homeView(panel)
	view.Text = text
	view.Error = msg
	return h.render(c, status, templates.HomePage(view))
}
