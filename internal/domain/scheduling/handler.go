package scheduling

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/domain/intake"
	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/pkg/pagination"
)

// BookedMessage is returned with a freshly booked appointment.
const BookedMessage = "Appointment booked successfully"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the patient-facing routes on api and the dashboard
// routes on admin. The caller protects admin.
func (h *Handler) RegisterRoutes(api, admin *echo.Group) {
	api.POST("/patients/:userId/appointments", h.CreateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)

	admin.GET("/dashboard", h.Dashboard)
	admin.GET("/appointments", h.ListAppointments)
	admin.GET("/appointments/:id", h.GetAppointment)
	admin.PATCH("/appointments/:id", h.UpdateAppointment)
	admin.POST("/appointments/:id/schedule", h.ScheduleAppointment)
	admin.POST("/appointments/:id/cancel", h.CancelAppointment)
}

type bookedResponse struct {
	Appointment *Appointment `json:"appointment"`
	Message     string       `json:"message"`
}

// CreateAppointment books for the user in the path. When the body names no
// patient, the user's own patient record is used.
func (h *Handler) CreateAppointment(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var f intake.CreateAppointmentForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	f.UserID = userID.String()

	ctx := c.Request().Context()
	if strings.TrimSpace(f.PatientID) == "" {
		ref, err := h.svc.ResolvePatient(ctx, userID)
		if err != nil {
			return err
		}
		f.PatientID = ref.ID.String()
	}

	a, err := h.svc.CreateAppointment(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, bookedResponse{Appointment: a, Message: BookedMessage})
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Dashboard(c echo.Context) error {
	l, err := h.svc.RecentAppointments(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, l)
}

type listResponse struct {
	*pagination.Response
	Counts Counts `json:"counts"`
}

func (h *Handler) ListAppointments(c echo.Context) error {
	p := pagination.FromContext(c)
	f := Filter{Limit: p.Limit, Offset: p.Offset, Physician: c.QueryParam("physician")}

	if v := c.QueryParam("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			return apperr.Invalid("status", "Status must be pending, scheduled or cancelled")
		}
		f.Status = st
	}
	for param, dst := range map[string]**uuid.UUID{"userId": &f.UserID, "patientId": &f.PatientID} {
		v := c.QueryParam(param)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Invalid(param, "Must be a valid id")
		}
		*dst = &id
	}

	l, err := h.svc.ListAppointments(c.Request().Context(), f)
	if err != nil {
		return err
	}

	resp := pagination.NewResponse(l.Appointments, l.Total, p)
	resp.Links = p.Links(c.Request().URL.Path, l.Total, url.Values{
		"status":    {c.QueryParam("status")},
		"userId":    {c.QueryParam("userId")},
		"patientId": {c.QueryParam("patientId")},
		"physician": {c.QueryParam("physician")},
	})
	return c.JSON(http.StatusOK, listResponse{Response: resp, Counts: l.Counts})
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ScheduleAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var f intake.ScheduleAppointmentForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.ScheduleAppointment(c.Request().Context(), id, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var f intake.CancelAppointmentForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.CancelAppointment(c.Request().Context(), id, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
