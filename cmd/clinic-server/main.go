package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/appointment"
	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/domain/clinic"
	"github.com/clinicdesk/clinicdesk/internal/domain/report"
	"github.com/clinicdesk/clinicdesk/internal/domain/roster"
	"github.com/clinicdesk/clinicdesk/internal/domain/settings"
	"github.com/clinicdesk/clinicdesk/internal/domain/visit"
	"github.com/clinicdesk/clinicdesk/internal/domain/waitinglist"
	"github.com/clinicdesk/clinicdesk/internal/platform/backend"
	"github.com/clinicdesk/clinicdesk/internal/platform/blobstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
	"github.com/clinicdesk/clinicdesk/internal/platform/middleware"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
	"github.com/clinicdesk/clinicdesk/internal/session"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic desk API server",
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
		Short: "Start the clinic API server",
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

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			count, err := db.NewMigrator(pool).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			statuses, err := db.NewMigrator(pool).Status(ctx)
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
	})

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
	loc := cfg.Location()

	// Database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Document store: Firestore when configured, in-memory otherwise.
	var store docstore.Store
	if cfg.FirestoreProjectID != "" {
		store, err = docstore.NewFirestore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to firestore")
		}
		logger.Info().Str("project", cfg.FirestoreProjectID).Msg("connected to firestore")
	} else {
		store = docstore.NewMemory()
		logger.Warn().Msg("FIRESTORE_PROJECT_ID not set; using in-memory document store")
	}

	// REST backend client
	client := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger)

	// Websocket hub
	hub := websocket.NewHub(logger)

	// Sessions
	signingKey := []byte(cfg.SessionSigningKey)
	if len(signingKey) == 0 {
		signingKey = make([]byte, 32)
		if _, err := crypto_rand.Read(signingKey); err != nil {
			logger.Fatal().Err(err).Msg("failed to generate session signing key")
		}
	}
	sessionMgr := session.NewManager(signingKey, cfg.SessionTTL)
	sessionSvc := session.NewService(store, sessionMgr, logger)

	// Domain services
	shapes := waitinglist.NewPGShapeStore(pool)
	ledger := billing.NewPGLedger(pool)

	waitingMgr := waitinglist.NewManager(ctx, store, shapes, hub, loc,
		cfg.RosterRefreshMinInterval, logger)
	defer waitingMgr.Shutdown()

	rosterReg := roster.NewRegistry(client, loc, cfg.RosterRefreshMinInterval, hub, logger)

	clinicResolver := clinic.NewResolver(store, logger)
	visitSvc := visit.NewService(client, loc, logger)
	billingSvc := billing.NewService(client, ledger, loc, logger)
	appointmentSvc := appointment.NewService(store, ledger, loc, logger)
	settingsSvc := settings.NewService(client, logger)

	renderer, err := report.NewRenderer(loc)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse report templates")
	}

	// Download URLs must resolve through the route group the handler is
	// mounted on.
	reportImages := blobstore.NewMemoryStore("http://localhost:" + cfg.Port + "/api/v1")

	// Outbox dispatcher delivers assistant notifications in the background.
	dispatcher := billing.NewDispatcher(ledger, store, hub, cfg.OutboxPollInterval,
		cfg.OutboxMaxAttempts, logger)
	go dispatcher.Run(ctx)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Route groups: public carries login and the websocket upgrade, api
	// requires a session, clinicAPI additionally requires a selected clinic.
	public := e.Group("")
	api := e.Group("/api/v1", session.Middleware(sessionMgr))
	clinicAPI := api.Group("", session.RequireClinic())

	session.NewHandler(sessionSvc).RegisterRoutes(public, api)
	websocket.NewHandler(hub).RegisterRoutes(public)

	clinic.NewHandler(clinicResolver, sessionSvc).RegisterRoutes(api)
	roster.NewHandler(rosterReg).RegisterRoutes(api)
	visit.NewHandler(visitSvc).RegisterRoutes(api)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api)
	settings.NewHandler(settingsSvc).RegisterRoutes(api)
	blobstore.NewHandler(reportImages).RegisterRoutes(api)

	waitinglist.NewHandler(ctx, waitingMgr, rosterReg).RegisterRoutes(clinicAPI)
	billing.NewHandler(billingSvc).RegisterRoutes(clinicAPI)
	report.NewHandler(renderer, client, waitingMgr, loc).RegisterRoutes(clinicAPI)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	return nil
}
