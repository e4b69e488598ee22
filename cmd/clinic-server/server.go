package main

import (
	"context"
	crypto_rand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/questionnaire"
	"github.com/clinic/clinic/internal/domain/staff"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/httperr"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/reporting"
)

const (
	// Login attempts per client IP.
	loginRPS   = 0.2
	loginBurst = 5

	bodyLimit       = "1M"
	shutdownTimeout = 10 * time.Second
	sweepEvery      = 5 * time.Minute
)

// routes bundles everything newRouter mounts.
type routes struct {
	Pool           *pgxpool.Pool
	Issuer         *auth.Issuer
	Revocations    *auth.TokenRevocationStore
	Staff          *staff.Handler
	Questionnaires *questionnaire.Handler
	Public         *questionnaire.PublicHandler
	Export         *reporting.Handler
	Patients       *patient.Handler
	LoginLimiter   *middleware.RateLimiter
	PublicLimiter  *middleware.RateLimiter
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	warnDevSessions(logger, cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	key, random, err := resolveSessionKey(cfg.SessionSigningKey)
	if err != nil {
		return err
	}
	if random {
		logger.Warn().Msg("SESSION_SIGNING_KEY not set, using a random key: sessions will not survive a restart")
	}

	issuer := auth.NewIssuer(key, cfg.SessionTTL)
	revocations := auth.NewTokenRevocationStore(sweepEvery)
	defer revocations.Close()

	templateSvc := questionnaire.NewTemplateService(questionnaire.NewTemplateRepoPG(pool))
	questionnaireSvc := questionnaire.NewService(
		questionnaire.NewTemplateRepoPG(pool),
		questionnaire.NewInstanceRepoPG(pool),
		questionnaire.Options{
			LinkTTL:       cfg.LinkTTL,
			OverdueAfter:  cfg.OverdueAfter,
			PublicBaseURL: cfg.PublicBaseURL,
		},
		logger,
	)
	patientSvc := patient.NewService(patient.NewRepoPG(pool), questionnaireSvc, db.NewTxRunner(pool), logger)
	staffSvc := staff.NewService(staff.NewRepoPG(pool), issuer, revocations, logger)

	r := routes{
		Pool:           pool,
		Issuer:         issuer,
		Revocations:    revocations,
		Staff:          staff.NewHandler(staffSvc),
		Questionnaires: questionnaire.NewHandler(questionnaireSvc, templateSvc),
		Public:         questionnaire.NewPublicHandler(questionnaireSvc),
		Export:         reporting.NewHandler(&exportFetcher{patients: patientSvc, instances: questionnaireSvc}, logger),
		Patients:       patient.NewHandler(patientSvc),
		LoginLimiter:   middleware.NewRateLimiter(loginRPS, loginBurst),
		PublicLimiter:  middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	e := newRouter(cfg, logger, r)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepLimiters(sweepCtx, sweepEvery, r.LoginLimiter, r.PublicLimiter)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newRouter(cfg *config.Config, logger zerolog.Logger, r routes) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httperr.New(logger, r.Revocations).Handle

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", "Accept-Language", "X-Request-ID", "X-Clinic-ID"},
		ExposeHeaders: []string{"Content-Disposition"},
	}))
	e.Use(middleware.Locale(cfg.DefaultLocale))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.BodyLimit(bodyLimit))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(r.Pool))

	// Patient-facing links carry their own token and need no session.
	public := e.Group("/questionnaire",
		r.PublicLimiter.Middleware(),
		db.ClinicMiddleware(r.Pool, cfg.DefaultClinic),
	)
	r.Public.RegisterRoutes(public)

	api := e.Group("/api/v1",
		auth.SessionMiddleware(auth.SessionConfig{
			Issuer:      r.Issuer,
			Revocations: r.Revocations,
			Skipper:     auth.AuthSkipper,
			DevMode:     cfg.IsDev(),
		}),
		db.ClinicMiddleware(r.Pool, cfg.DefaultClinic),
		middleware.Audit(logger),
	)

	// Admin groups before staff groups: the last group registered owns the
	// not-found fallback.
	r.Staff.RegisterRoutes(api, r.LoginLimiter.Middleware())
	r.Questionnaires.RegisterRoutes(api)
	r.Export.RegisterRoutes(api)
	r.Patients.RegisterRoutes(api)

	return e
}

// warnDevSessions flags that requests without a token run as admin.
func warnDevSessions(logger zerolog.Logger, cfg *config.Config) {
	if cfg.IsDev() {
		logger.Warn().Str("env", cfg.Env).Msg("development mode: requests without a session token are treated as an admin session")
	}
}

func sweepLimiters(ctx context.Context, every time.Duration, limiters ...*middleware.RateLimiter) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, l := range limiters {
				l.Sweep()
			}
		}
	}
}

// resolveSessionKey decodes the configured hex key or, when none is set,
// generates a random 32-byte key. The bool reports a generated key.
func resolveSessionKey(envValue string) ([]byte, bool, error) {
	if envValue != "" {
		decoded, err := hex.DecodeString(envValue)
		if err != nil {
			return nil, false, fmt.Errorf("invalid SESSION_SIGNING_KEY hex value: %w", err)
		}
		return decoded, false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random session key: %w", err)
	}
	return key, true, nil
}

type patientReader interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type instanceLister interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*questionnaire.Instance, int, error)
	DisplayStatus(inst *questionnaire.Instance) questionnaire.Status
}

const exportPageSize = 100

// exportFetcher implements reporting.Fetcher on top of the patient and
// questionnaire services.
type exportFetcher struct {
	patients  patientReader
	instances instanceLister
}

func (f *exportFetcher) FetchExport(ctx context.Context, patientID uuid.UUID) (*reporting.Export, error) {
	p, err := f.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	exp := &reporting.Export{
		Patient: reporting.PatientInfo{
			Name:      p.Name,
			Age:       p.Age,
			Phone:     p.Phone,
			Email:     p.Email,
			Condition: p.Condition,
		},
	}
	if p.TreatmentNotes != nil {
		exp.Patient.TreatmentNotes = *p.TreatmentNotes
	}

	for offset := 0; ; offset += exportPageSize {
		page, total, err := f.instances.ListByPatient(ctx, patientID, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, inst := range page {
			exp.Items = append(exp.Items, reporting.Item{Instance: inst, Status: f.instances.DisplayStatus(inst)})
		}
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}
	return exp, nil
}
