package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carepulse/carepulse/internal/domain/intake"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/users", h.CreateUser)
	api.GET("/users/:id", h.GetUser)
	api.POST("/patients/:userId/register", h.RegisterPatient)
	api.GET("/patients/:userId", h.GetPatientByUser)
}

// RegisterLink is the flow step that follows user creation.
func RegisterLink(userID uuid.UUID) string {
	return fmt.Sprintf("/patients/%s/register", userID)
}

// NewAppointmentLink is the flow step that follows registration.
func NewAppointmentLink(userID uuid.UUID) string {
	return fmt.Sprintf("/patients/%s/new-appointment", userID)
}

type userResponse struct {
	User *User  `json:"user"`
	Next string `json:"next"`
}

type patientResponse struct {
	Patient *Patient `json:"patient"`
	Next    string   `json:"next"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var f intake.UserForm
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, created, err := h.svc.EnsureUser(c.Request().Context(), f)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, userResponse{User: u, Next: RegisterLink(u.ID)})
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// RegisterPatient accepts either a JSON body or a multipart form whose "data"
// part holds the JSON and whose "identificationDocument" part holds the file.
func (h *Handler) RegisterPatient(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	var (
		f   intake.PatientForm
		doc *Upload
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		upload, closeFn, err := readMultipart(c, &f)
		if err != nil {
			return err
		}
		defer closeFn()
		doc = upload
	} else if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.RegisterPatient(c.Request().Context(), userID, f, doc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, patientResponse{Patient: p, Next: NewAppointmentLink(userID)})
}

func readMultipart(c echo.Context, f *intake.PatientForm) (*Upload, func(), error) {
	noop := func() {}
	data := c.FormValue("data")
	if data == "" {
		return nil, noop, echo.NewHTTPError(http.StatusBadRequest, `multipart form is missing the "data" part`)
	}
	if err := json.Unmarshal([]byte(data), f); err != nil {
		return nil, noop, echo.NewHTTPError(http.StatusBadRequest, "invalid registration data")
	}

	fh, err := c.FormFile("identificationDocument")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, echo.NewHTTPError(http.StatusBadRequest, "invalid identification document")
	}
	file, err := fh.Open()
	if err != nil {
		return nil, noop, echo.NewHTTPError(http.StatusBadRequest, "invalid identification document")
	}
	upload := &Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Content:     file,
	}
	return upload, func() { file.Close() }, nil
}

func (h *Handler) GetPatientByUser(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	p, err := h.svc.GetPatientByUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
