package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carepulse/carepulse/internal/config"
	"github.com/carepulse/carepulse/internal/domain/alert"
	"github.com/carepulse/carepulse/internal/domain/checkin"
	"github.com/carepulse/carepulse/internal/domain/escalation"
	"github.com/carepulse/carepulse/internal/domain/patient"
	"github.com/carepulse/carepulse/internal/domain/risk"
	"github.com/carepulse/carepulse/internal/domain/warning"
	"github.com/carepulse/carepulse/internal/platform/auth"
	"github.com/carepulse/carepulse/internal/platform/db"
	"github.com/carepulse/carepulse/internal/platform/middleware"
	"github.com/carepulse/carepulse/internal/platform/notification"
	"github.com/carepulse/carepulse/internal/platform/realtime"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carepulse-server",
		Short: "CarePulse recovery monitoring API server",
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
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

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
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Realtime hub. With REDIS_URL set, events are mirrored across
	// instances through a Redis channel; otherwise the hub is local only.
	hub := realtime.NewHub(logger)
	sequencer := realtime.NewSequencer()

	var publisher realtime.Publisher = hub
	bridgeCtx, bridgeCancel := context.WithCancel(ctx)
	defer bridgeCancel()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		bridge := realtime.NewRedisBridge(redis.NewClient(opts), hub, logger)
		publisher = bridge
		go func() {
			if err := bridge.Run(bridgeCtx); err != nil && bridgeCtx.Err() == nil {
				logger.Error().Err(err).Msg("redis bridge stopped")
			}
		}()
		logger.Info().Msg("redis event bridge enabled")
	}

	// Notification channels. Unconfigured channels fall back to mock
	// senders that log deliveries, so development needs no SMTP or SMS
	// credentials.
	var emailSender notification.EmailSender = &notification.MockEmailSender{}
	if cfg.SMTPHost != "" {
		emailSender = notification.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
		logger.Info().Str("host", cfg.SMTPHost).Msg("SMTP notification sender enabled")
	} else {
		logger.Warn().Msg("SMTP_HOST not set; clinician emails are logged only")
	}

	var smsSender notification.SMSSender = &notification.MockSMSSender{}
	if cfg.SMSGatewayURL != "" {
		smsSender = notification.NewHTTPSMSSender(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSSenderID, 10*time.Second)
		logger.Info().Msg("SMS gateway sender enabled")
	} else {
		logger.Warn().Msg("SMS_GATEWAY_URL not set; patient SMS are logged only")
	}

	notifier := notification.NewManager(emailSender, smsSender, notification.NewTemplateEngine())

	// Risk classifier: remote scorer with the rule engine as fallback when
	// configured, otherwise the rule engine alone.
	var classifier risk.Classifier = risk.NewRuleClassifier(risk.DefaultConfig())
	if cfg.ClassifierURL != "" {
		remote := risk.NewRemoteClassifier(cfg.ClassifierURL, time.Duration(cfg.ClassifierTimeoutMS)*time.Millisecond)
		classifier = risk.WithFallback(remote, classifier)
		logger.Info().Str("url", cfg.ClassifierURL).Msg("remote risk classifier enabled")
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	// API groups. The public group carries OTP login; everything else
	// requires a token.
	public := e.Group("/api/v1")
	public.Use(middleware.RateLimit(rateLimitCfg))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.IsDev() && cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET not set; running with dev auth")
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(cfg.JWTSecret))
	}

	// Health check
	e.GET("/health", db.HealthHandler(pool))

	// -- Repositories --
	patientRepo := patient.NewRepoPG(pool)
	checkinRepo := checkin.NewRepoPG(pool)
	alertRepo := alert.NewRepoPG(pool)

	// -- Services --
	patientSvc := patient.NewService(patientRepo, notifier, cfg.JWTSecret, time.Duration(cfg.OTPTTLMinutes)*time.Minute)
	alertSvc := alert.NewService(alertRepo)
	checkinSvc := checkin.NewService(checkinRepo, classifier)
	warningSvc := warning.NewService(patientRepo, checkinRepo, time.Duration(cfg.AppointmentLookaheadDays)*24*time.Hour)

	dispatcher := escalation.NewDispatcher(patientRepo, alertSvc, notifier, publisher, sequencer, logger)
	checkinSvc.SetEscalator(dispatcher)
	alertSvc.SetResolveHook(dispatcher.PublishAlertResolved)

	// -- Handlers --
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1, public)
	checkin.NewHandler(checkinSvc, patientSvc).RegisterRoutes(apiV1)
	alert.NewHandler(alertSvc).RegisterRoutes(apiV1)
	escalation.NewHandler(dispatcher).RegisterRoutes(apiV1)
	warning.NewHandler(warningSvc).RegisterRoutes(apiV1)
	realtime.NewWebSocketHandler(hub).RegisterRoutes(apiV1)

	// Start server with graceful shutdown
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
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
