package notification

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler exposes the notification log to admins.
type Handler struct {
	mgr       *Manager
	templates *TemplateEngine
}

func NewHandler(mgr *Manager, templates *TemplateEngine) *Handler {
	return &Handler{mgr: mgr, templates: templates}
}

// RegisterRoutes mounts the routes on an admin-protected group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List)
	g.GET("/notifications/stats", h.Stats)
	g.GET("/notifications/templates", h.ListTemplates)
	g.GET("/notifications/:id", h.Get)
	g.POST("/notifications/:id/retry", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	items := h.mgr.List(c.Request().Context(), c.QueryParam("recipient"), c.QueryParam("status"), limit)
	if items == nil {
		items = []*Notification{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": len(items),
	})
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.mgr.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mgr.Stats(c.Request().Context()))
}

func (h *Handler) ListTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, h.templates.Templates())
}

// Retry re-sends a failed notification. A failed re-send still answers 200
// with the updated record so the admin can see the new error.
func (h *Handler) Retry(c echo.Context) error {
	n, err := h.mgr.Retry(c.Request().Context(), c.Param("id"))
	if n == nil && err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}
