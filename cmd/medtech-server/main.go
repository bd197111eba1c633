package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/athishkirthikjd/MedTech-AI/internal/config"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/emergency"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/identity"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/prescription"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/scheduling"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/triage"
	"github.com/athishkirthikjd/MedTech-AI/internal/domain/vitals"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/ai"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/auth"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/db"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/middleware"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/notification"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/webhook"
	"github.com/athishkirthikjd/MedTech-AI/internal/platform/websocket"
)

// asyncPublisher implements webhook.Publisher by delivering events on a
// background goroutine, so request handlers never block on outbound
// HTTP. Failed deliveries are logged; the manager's own retry loop has
// already run by then.
type asyncPublisher struct {
	manager *webhook.Manager
	logger  zerolog.Logger
}

func (p *asyncPublisher) Deliver(ctx context.Context, event webhook.Event) []webhook.DeliveryResult {
	go func() {
		for _, res := range p.manager.Deliver(context.WithoutCancel(ctx), event) {
			if !res.Success {
				p.logger.Warn().
					Str("event_type", event.Type).
					Str("endpoint_id", res.EndpointID).
					Int("status", res.StatusCode).
					Str("error", res.Error).
					Msg("webhook delivery failed")
			}
		}
	}()
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "medtech-server",
		Short: "MedTech AI healthcare backend",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			statusOnly, _ := cmd.Flags().GetBool("status")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)

			if statusOnly {
				statuses, err := migrator.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			}

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.Flags().Bool("status", false, "Show migration status instead of applying")
	return cmd
}

// newLogger builds the process logger. Development gets a human console
// writer; everything else emits JSON lines.
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
			Release:     cfg.AppVersion,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("sentry initialization failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Token verification is shared by the HTTP middleware, the identity
	// verify endpoint and the websocket handshake.
	revocations := auth.NewTokenRevocationStore()
	defer revocations.Close()

	jwtCfg := auth.JWTConfig{
		Issuer:      cfg.JWTIssuer,
		Audience:    cfg.JWTAudience,
		JWKSURL:     cfg.JWKSURL,
		Skipper:     auth.AuthSkipper,
		Revocations: revocations,
	}
	if cfg.JWTSecret != "" {
		jwtCfg.SigningKey = []byte(cfg.JWTSecret)
	}
	verifier := auth.NewTokenVerifier(jwtCfg)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// Auth middleware
	if cfg.AuthEnabled {
		e.Use(auth.JWTMiddleware(jwtCfg))
	} else {
		logger.Warn().Msg("authentication disabled, requests run as the dev user")
		e.Use(auth.DevAuthMiddleware())
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// API group
	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Doctor directory reads are hot and rarely change; serve them from
	// a short-lived cache.
	cacheStore := middleware.NewInMemoryCacheStore()
	cacheStore.StartCleanup(ctx, 5*time.Minute)
	apiV1.Use(middleware.ResponseCache(cacheStore, time.Minute, "/api/v1/doctors"))

	// AI endpoints carry their own, stricter per-user budget.
	aiGroup := apiV1.Group("", middleware.RateLimit(middleware.PerMinute(cfg.RateLimitAIRPM)))

	// Platform services
	model := ai.NewOpenAIClient(ai.Config{
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		Timeout:     cfg.AITimeout(),
		MaxRetries:  cfg.AIMaxRetries,
	}, logger)

	notifier := notification.NewManager(
		&notification.LogEmailSender{Logger: logger},
		&notification.LogSMSSender{Logger: logger},
		notification.NewTemplateEngine(),
		cfg.EmergencyNotificationEnabled,
	)

	hooks := webhook.NewManager(webhook.NewInMemoryStore())
	if cfg.EmergencyWebhookURL != "" {
		if _, err := hooks.RegisterEndpoint(ctx, cfg.EmergencyWebhookURL, "", []string{"emergency.*"}); err != nil {
			logger.Warn().Err(err).Str("url", cfg.EmergencyWebhookURL).Msg("emergency webhook registration failed")
		}
	}
	events := &asyncPublisher{manager: hooks, logger: logger}

	hub := websocket.NewHub()
	var wsAuth websocket.AuthFunc
	if cfg.AuthEnabled {
		wsAuth = func(token string) error {
			_, err := verifier.Verify(token)
			return err
		}
	}

	// Identity domain
	userRepo := identity.NewUserRepo(pool)
	patientRepo := identity.NewPatientProfileRepo(pool)
	doctorRepo := identity.NewDoctorProfileRepo(pool)
	identitySvc := identity.NewService(userRepo, patientRepo, doctorRepo, verifier)
	identityHandler := identity.NewHandler(identitySvc)
	identityHandler.RegisterRoutes(apiV1)

	// Scheduling domain
	apptRepo := scheduling.NewAppointmentRepo(pool)
	schedSvc := scheduling.NewService(apptRepo, &schedulingDirectory{ids: identitySvc}, notifier, events, hub, logger)
	schedHandler := scheduling.NewHandler(schedSvc)
	schedHandler.RegisterRoutes(apiV1)

	// Vitals domain
	vitalsRepo := vitals.NewRecordRepo(pool)
	vitalsSvc := vitals.NewService(vitalsRepo, &vitalsDirectory{ids: identitySvc}, notifier, events, hub, logger)
	vitalsHandler := vitals.NewHandler(vitalsSvc)
	vitalsHandler.RegisterRoutes(apiV1)

	// Emergency domain
	emergencyRepo := emergency.NewEventRepo(pool)
	emergencySvc := emergency.NewService(emergencyRepo, &emergencyDirectory{ids: identitySvc}, model, notifier, events, hub, logger)
	emergencyHandler := emergency.NewHandler(emergencySvc)
	emergencyHandler.RegisterRoutes(apiV1)

	// Prescription domain
	rxRepo := prescription.NewRepo(pool)
	rxSvc := prescription.NewService(rxRepo, &prescriptionDirectory{ids: identitySvc}, notifier, logger)
	rxHandler := prescription.NewHandler(rxSvc)
	rxHandler.RegisterRoutes(apiV1)

	// AI triage
	triageSvc := triage.NewService(model, triage.NewSafetyEngine(logger), logger)
	triageHandler := triage.NewHandler(triageSvc, &triageProfiles{ids: identitySvc})
	triageHandler.RegisterRoutes(aiGroup, apiV1)

	// Notification and webhook management APIs
	notifHandler := notification.NewHandler(notifier)
	notifHandler.RegisterRoutes(apiV1)
	hookHandler := webhook.NewHandler(hooks)
	hookHandler.RegisterRoutes(apiV1.Group("/webhooks"))
	auth.RegisterRevocationRoutes(apiV1, revocations)

	// Realtime feed
	wsHandler := websocket.NewHandler(hub, wsAuth)
	wsHandler.RegisterRoutes(e.Group(""))

	// Service info and health probes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"name":    cfg.AppName,
			"version": cfg.AppVersion,
			"status":  "running",
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":      "healthy",
			"environment": cfg.Environment,
		})
	})
	e.GET("/ready", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := cfg.Host + ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Environment).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
