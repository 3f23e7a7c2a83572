package main

import (
	"context"
	crypto_rand "crypto/rand"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/readmit/dashboard/internal/config"
	"github.com/readmit/dashboard/internal/domain/directory"
	"github.com/readmit/dashboard/internal/domain/discharge"
	"github.com/readmit/dashboard/internal/domain/identity"
	"github.com/readmit/dashboard/internal/domain/intake"
	"github.com/readmit/dashboard/internal/domain/session"
	"github.com/readmit/dashboard/internal/platform/auth"
	"github.com/readmit/dashboard/internal/platform/db"
	"github.com/readmit/dashboard/internal/platform/middleware"
	"github.com/readmit/dashboard/internal/platform/predictionapi"
	"github.com/readmit/dashboard/internal/platform/telemetry"
	"github.com/readmit/dashboard/internal/platform/websocket"
)

// requestTimeout bounds a whole API request, including the risk fan-out.
const requestTimeout = 60 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard-server",
		Short: "Readmission dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(patientsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run user store migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openUserDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationFiles(dir), schema)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			pool, err := openUserDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrationFiles(dir), schema)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			printMigrationStatus(os.Stdout, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openUserDB(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return identity.Migrations()
	}
	return os.DirFS(dir)
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// newLogger writes JSON to stdout, or console output in development, and
// tees into a rotating file when logFile is set.
func newLogger(env, logFile string) (zerolog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	var closer io.Closer = nopCloser{}
	if logFile != "" {
		file := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}
	return zerolog.New(out).With().Timestamp().Logger(), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newRemote(cfg *config.Config) *predictionapi.Client {
	return predictionapi.NewClient(predictionapi.Config{
		BaseURL:          cfg.PredictionAPIURL,
		CustomerID:       cfg.CustomerID,
		Timeout:          cfg.RemoteTimeout,
		SkipProxyWarning: cfg.SkipProxyWarning,
	})
}

// resolveSigningKey returns the configured token signing key or generates a
// random 32-byte key. The second return value is true when a random key was
// generated.
func resolveSigningKey(configured string) ([]byte, bool, error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

type serverDeps struct {
	remote      *predictionapi.Client
	credentials identity.Credentials
	federated   identity.Federated
	tokens      *auth.TokenIssuer
}

// newServer builds the echo instance with every route mounted. The returned
// registry must be shut down after the server stops.
func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) (*echo.Echo, *session.Registry) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.Middleware())
	e.Use(middleware.Sanitize(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	limits := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		limits.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		limits.BurstSize = cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(limits))
	e.Use(middleware.RequestTimeout(requestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", telemetry.Handler())

	// Session change notifications
	hub := websocket.NewHub(logger)
	events := websocket.NewHandler(hub, cfg.CORSOrigins, logger)

	registry := session.NewRegistry(cfg.SessionTTL, func() *identity.Adapter {
		return identity.NewAdapter(deps.credentials, deps.federated, logger)
	}, hub, logger)

	// API groups
	apiV1 := e.Group("/api/v1", auth.Middleware(deps.tokens, auth.Skipper))
	session.NewHandler(registry, deps.tokens, events, logger).RegisterRoutes(apiV1)

	mutations := middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		telemetry.RecordPatientMutation(entry.Action, entry.StatusCode)
		return nil
	})
	protected := apiV1.Group("", registry.Middleware(), session.Guard(), middleware.Audit(logger, session.ActorID, mutations))
	directory.NewHandler(directory.NewService(deps.remote, cfg.RiskFetchConcurrency, logger)).RegisterRoutes(protected)
	intake.NewHandler(deps.remote, logger).RegisterRoutes(protected)
	discharge.NewHandler(deps.remote, logger).RegisterRoutes(protected)

	return e, registry
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logger
	logger, logCloser := newLogger(cfg.Env, cfg.LogFile)
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// User store
	ctx := context.Background()
	var users identity.UserStore = identity.NewMemoryUserStore()
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		users = identity.NewPGUserStore(pool)
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, accounts are kept in memory")
	}

	key, generated, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if generated {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using a random key; tab tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(key, cfg.AuthIssuer, cfg.SessionTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token issuer")
	}

	deps := serverDeps{
		remote:      newRemote(cfg),
		credentials: identity.NewPasswordProvider(users, 0),
		tokens:      tokens,
	}
	if cfg.OAuthEnabled() {
		deps.federated = identity.NewOAuthProvider(identity.OAuthConfig{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			RedirectURL:  cfg.OAuthRedirectURL,
			UserInfoURL:  cfg.OAuthUserInfoURL,
		})
		logger.Info().Msg("provider sign-in enabled")
	}

	e, registry := newServer(cfg, logger, deps)
	defer registry.Shutdown()

	// DB health check endpoint
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("prediction_api", cfg.PredictionAPIURL).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
