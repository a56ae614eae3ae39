package roster

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	roster *Roster
}

func NewHandler(r *Roster) *Handler {
	return &Handler{roster: r}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"data": h.roster.All()})
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, ok := h.roster.Lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}
