// Package server assembles the HTTP surface from the domain services and the
// platform middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/carepulse/carepulse/internal/config"
	"github.com/carepulse/carepulse/internal/domain/intake"
	"github.com/carepulse/carepulse/internal/domain/patient"
	"github.com/carepulse/carepulse/internal/domain/roster"
	"github.com/carepulse/carepulse/internal/domain/scheduling"
	"github.com/carepulse/carepulse/internal/platform/apperr"
	"github.com/carepulse/carepulse/internal/platform/auth"
	"github.com/carepulse/carepulse/internal/platform/blobstore"
	"github.com/carepulse/carepulse/internal/platform/db"
	"github.com/carepulse/carepulse/internal/platform/middleware"
	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/platform/validation"
	"github.com/carepulse/carepulse/internal/platform/websocket"
)

const (
	// DefaultBodyLimit caps JSON bodies.
	DefaultBodyLimit = "1M"
	// UploadBodyLimit caps multipart registrations, leaving room for a 5 MiB
	// identification document plus the form part.
	UploadBodyLimit = "6M"

	adminPrefix = "/api/v1/admin"
)

// Deps overrides collaborators that are otherwise built from the config.
// Zero fields are filled in by New.
type Deps struct {
	// Pool is the Postgres pool. Required unless the config selects the
	// memory store.
	Pool   *pgxpool.Pool
	Roster *roster.Roster
	Blobs  blobstore.BlobStore
	SMS    notification.SMSSender
	// Now pins the validation clock.
	Now func() time.Time
	// AuditRecorders receive every audited admin mutation.
	AuditRecorders []middleware.AuditRecorder
}

// Server is the assembled application.
type Server struct {
	Echo          *echo.Echo
	Hub           *websocket.Hub
	Patients      *patient.Service
	Appointments  *scheduling.Service
	Notifications *notification.Manager
	Issuer        *auth.TokenIssuer

	revoked *auth.RevocationStore
	logger  zerolog.Logger
}

// New builds the server. It does not start listening.
func New(ctx context.Context, cfg *config.Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	if !cfg.UsesMemoryStore() && deps.Pool == nil {
		return nil, errors.New("a database pool is required for the postgres store")
	}

	rost := deps.Roster
	if rost == nil {
		var err error
		rost, err = loadRoster(ctx, cfg, deps.Pool)
		if err != nil {
			return nil, err
		}
	}

	blobs := deps.Blobs
	if blobs == nil {
		disk, err := blobstore.NewDiskBlobStore(cfg.BlobDir, cfg.BucketID)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		blobs = disk
	}

	sms := deps.SMS
	if sms == nil {
		sms = NewSMSSender(cfg, logger)
	}

	issuer, err := newIssuer(cfg, logger)
	if err != nil {
		return nil, err
	}

	var opts []validation.Option
	if deps.Now != nil {
		opts = append(opts, validation.WithClock(deps.Now))
	}
	validator := intake.NewValidator(rost, opts...)

	// Repositories
	var (
		userRepo    patient.UserRepository
		patientRepo patient.PatientRepository
		apptRepo    scheduling.AppointmentRepository
		tx          scheduling.TxRunner
	)
	if cfg.UsesMemoryStore() {
		userRepo = patient.NewMemoryUserRepo()
		patientRepo = patient.NewMemoryPatientRepo()
		apptRepo = scheduling.NewMemoryAppointmentRepo()
		tx = &scheduling.LockingTx{}
		logger.Warn().Msg("using in-memory store, records are lost on restart")
	} else {
		userRepo = patient.NewUserRepoPG(deps.Pool)
		patientRepo = patient.NewPatientRepoPG(deps.Pool)
		apptRepo = scheduling.NewAppointmentRepoPG(deps.Pool)
		tx = db.NewTxRunner(deps.Pool)
	}

	// Services
	templates := notification.NewTemplateEngine()
	notifications := notification.NewManager(sms, templates, cfg.NotifyTimeout)
	hub := websocket.NewHub(logger)

	patientSvc := patient.NewService(userRepo, patientRepo, blobs, validator, cfg.PublicBaseURL, logger)
	notifier := scheduling.NewNotifier(notifications, hub, cfg.Location(), logger)
	apptSvc := scheduling.NewService(apptRepo, tx, NewPatientDirectory(patientSvc), validator, notifier, logger)

	s := &Server{
		Echo:          echo.New(),
		Hub:           hub,
		Patients:      patientSvc,
		Appointments:  apptSvc,
		Notifications: notifications,
		Issuer:        issuer,
		revoked:       auth.NewRevocationStore(time.Minute),
		logger:        logger,
	}

	e := s.Echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
		HSTS:     cfg.IsProduction(),
		DocsPath: apiPrefix + "/docs",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(middleware.BodyLimit(DefaultBodyLimit, UploadBodyLimit))
	e.Use(middleware.Audit(logger, adminPrefix, deps.AuditRecorders...))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Pool != nil {
		e.GET("/health/db", db.HealthHandler(deps.Pool))
	} else {
		e.GET("/health/db", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"store": config.StoreDriverMemory, "status": "healthy"})
		})
	}

	// API groups
	api := e.Group(apiPrefix)
	admin := e.Group(adminPrefix, auth.RequireAdmin(issuer, s.revoked))

	roster.NewHandler(rost).RegisterRoutes(api)
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	scheduling.NewHandler(apptSvc).RegisterRoutes(api, admin)
	blobstore.NewBlobHandler(blobs).RegisterRoutes(api)

	auth.NewSessionHandler(auth.NewPasskey(cfg.AdminPasskeyHash), issuer, s.revoked, logger).RegisterRoutes(api, admin)
	notification.NewHandler(notifications, templates).RegisterRoutes(admin)
	websocket.NewHandler(hub, websocket.HandlerConfig{
		AllowedOrigins: cfg.CORSOrigins,
		DefaultTopics:  []string{scheduling.TopicAppointments},
	}).RegisterRoutes(admin)
	apiDocs(cfg.PublicBaseURL).RegisterRoutes(e, api)

	return s, nil
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting server")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then disconnects live-feed clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.Hub.Close()
	s.revoked.Close()
	return err
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func loadRoster(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*roster.Roster, error) {
	if cfg.UsesMemoryStore() || pool == nil {
		return roster.Default(), nil
	}
	return roster.Load(ctx, roster.NewRepoPG(pool))
}

// NewSMSSender picks the webhook gateway when one is configured and the log
// sender otherwise.
func NewSMSSender(cfg *config.Config, logger zerolog.Logger) notification.SMSSender {
	if cfg.SMSGatewayURL == "" {
		return notification.NewLogSMSSender(logger)
	}
	return notification.NewWebhookSMSSender(cfg.SMSGatewayURL, cfg.SMSGatewayToken, &http.Client{Timeout: cfg.NotifyTimeout})
}

func newIssuer(cfg *config.Config, logger zerolog.Logger) (*auth.TokenIssuer, error) {
	secret := []byte(cfg.AdminTokenSecret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return nil, errors.New("ADMIN_TOKEN_SECRET is required in production")
		}
		random, err := auth.RandomSecret()
		if err != nil {
			return nil, err
		}
		secret = random
		logger.Warn().Msg("ADMIN_TOKEN_SECRET not set, admin sessions will not survive a restart")
	}
	return auth.NewTokenIssuer(secret, cfg.AdminTokenTTL)
}

// patientDirectory lets scheduling resolve patients without importing the
// patient package.
type patientDirectory struct {
	svc *patient.Service
}

// NewPatientDirectory adapts the patient service to scheduling.PatientDirectory.
func NewPatientDirectory(svc *patient.Service) scheduling.PatientDirectory {
	return &patientDirectory{svc: svc}
}

func (d *patientDirectory) Patient(ctx context.Context, id uuid.UUID) (*scheduling.PatientRef, error) {
	p, err := d.svc.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	return toRef(p), nil
}

func (d *patientDirectory) PatientByUser(ctx context.Context, userID uuid.UUID) (*scheduling.PatientRef, error) {
	p, err := d.svc.GetPatientByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toRef(p), nil
}

func toRef(p *patient.Patient) *scheduling.PatientRef {
	return &scheduling.PatientRef{ID: p.ID, UserID: p.UserID, Name: p.Name, Phone: p.Phone}
}
