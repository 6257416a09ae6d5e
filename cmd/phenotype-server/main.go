package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/phenotype/phenotype/internal/config"
	"github.com/phenotype/phenotype/internal/domain/aggregate"
	"github.com/phenotype/phenotype/internal/domain/mention"
	"github.com/phenotype/phenotype/internal/domain/run"
	"github.com/phenotype/phenotype/internal/platform/auth"
	"github.com/phenotype/phenotype/internal/platform/db"
	"github.com/phenotype/phenotype/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "phenotype-server",
		Short: "Breast cancer phenotype aggregation service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the phenotype API server",
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

			count, err := db.NewMigrator(pool, dir).Up(ctx)
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

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
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

// runCmd executes one aggregation run offline: mentions JSON plus an
// optional mapping CSV in, patient and evidence CSVs out. No database
// required.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch aggregation run from files",
		RunE: func(cmd *cobra.Command, args []string) error {
			mentionsPath, _ := cmd.Flags().GetString("mentions")
			mappingPath, _ := cmd.Flags().GetString("mapping")
			outDir, _ := cmd.Flags().GetString("out")
			if mentionsPath == "" {
				return fmt.Errorf("--mentions is required")
			}

			f, err := os.Open(mentionsPath)
			if err != nil {
				return err
			}
			defer f.Close()
			in, err := run.ParseMentionsJSON(f)
			if err != nil {
				return err
			}

			if mappingPath != "" {
				mf, err := os.Open(mappingPath)
				if err != nil {
					return err
				}
				defer mf.Close()
				notes, err := run.ParseMappingCSV(mf)
				if err != nil {
					return err
				}
				in.Notes = notes
			}

			norm := mention.NewNormalizer(mention.DefaultNormalizerConfig())
			result := run.Process(aggregate.DefaultConfig(), norm, in)

			for _, w := range result.Warnings {
				fmt.Fprintln(os.Stderr, "warning:", w)
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			if err := writeCSV(filepath.Join(outDir, "patients.csv"), func(w *os.File) error {
				return run.WriteRecordsCSV(w, result.Records)
			}); err != nil {
				return err
			}
			if err := writeCSV(filepath.Join(outDir, "evidence.csv"), func(w *os.File) error {
				return run.WriteEvidenceCSV(w, result.Evidence)
			}); err != nil {
				return err
			}

			fmt.Printf("Run %s: %d patients, %d mentions, %d warnings.\n",
				result.Run.ID, result.Run.PatientCount, result.Run.MentionCount, result.Run.WarningCount)
			return nil
		},
	}
	cmd.Flags().String("mentions", "", "Path to mentions JSON from the extractor")
	cmd.Flags().String("mapping", "", "Path to note-to-patient mapping CSV")
	cmd.Flags().String("out", ".", "Output directory for patient and evidence CSVs")
	return cmd
}

func writeCSV(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
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
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

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
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Aggregation policy
	aggCfg := aggregate.DefaultConfig()
	aggCfg.Workers = cfg.AggregationWorkers
	normCfg := mention.DefaultNormalizerConfig()
	if cfg.PercentRangeBound == "lower" {
		normCfg.PercentRangeBound = mention.RangeLower
	}

	// Run domain
	runRepo := run.NewRepoPG(pool)
	runSvc := run.NewService(runRepo, aggCfg, mention.NewNormalizer(normCfg), logger)
	run.NewHandler(runSvc).RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
	return nil
}
