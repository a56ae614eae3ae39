package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carepulse/carepulse/internal/config"
	"github.com/carepulse/carepulse/internal/domain/roster"
	"github.com/carepulse/carepulse/internal/platform/db"
	"github.com/carepulse/carepulse/internal/server"
	"github.com/carepulse/carepulse/internal/testrunner"
	"github.com/carepulse/carepulse/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carepulse",
		Short: "CarePulse patient intake API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(testCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

// migrationFiles returns the embedded migrations, or dir when set.
func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationFiles(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationFiles(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

func rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster",
		Short: "List the doctors patients can choose as primary physician",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			r := roster.Default()
			if !cfg.UsesMemoryStore() {
				ctx := context.Background()
				pool, err := connect(ctx, cfg)
				if err != nil {
					return err
				}
				defer pool.Close()
				if r, err = roster.Load(ctx, roster.NewRepoPG(pool)); err != nil {
					return err
				}
			}
			printRoster(cmd.OutOrStdout(), r.All())
			return nil
		},
	}
}

func printRoster(w io.Writer, doctors []roster.Doctor) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSPECIALTY")
	for _, d := range doctors {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.DisplayName(), d.Specialty)
	}
	tw.Flush()
}

func testCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run the unit, end-to-end and integration test phases",
		RunE: func(cmd *cobra.Command, args []string) error {
			integration, _ := cmd.Flags().GetBool("integration")
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			profile, _ := cmd.Flags().GetString("coverprofile")
			only, _ := cmd.Flags().GetStringSlice("phase")
			verbose, _ := cmd.Flags().GetBool("verbose")

			runner := testrunner.ExecRunner{}
			if verbose {
				runner.Out = cmd.OutOrStdout()
			}
			suite := testrunner.New(runner, testrunner.Options{
				CoverProfile: profile,
				Threshold:    threshold,
				Integration:  integration,
				Only:         only,
			}, newLogger("development"))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := suite.Run(ctx)
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().Bool("integration", false, "Include the Postgres integration phase (needs Docker)")
	cmd.Flags().Float64("threshold", testrunner.DefaultThreshold, "Minimum total statement coverage in percent; negative disables the check")
	cmd.Flags().String("coverprofile", "coverage.out", "Coverage profile written by the unit phase")
	cmd.Flags().StringSlice("phase", nil, "Run only these phases (unit, e2e, integration)")
	cmd.Flags().BoolP("verbose", "v", false, "Stream go test output")
	return cmd
}

func printReport(w io.Writer, r *testrunner.Report) {
	if r == nil {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tRESULT\tDURATION")
	for _, res := range r.Results {
		result := "pass"
		if !res.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", res.Phase, result, res.Duration.Round(time.Millisecond))
	}
	if r.CoverageChecked {
		fmt.Fprintf(tw, "coverage\t%.1f%%\tthreshold %.1f%%\n", r.Coverage, r.Threshold)
	}
	tw.Flush()
	if r.Passed() {
		fmt.Fprintln(w, "All test phases passed.")
	} else {
		fmt.Fprintln(w, "Test run failed.")
	}
}

func runServer(migrate bool) error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	deps := server.Deps{}

	// Database
	if !cfg.UsesMemoryStore() {
		pool, err := connect(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		if migrate {
			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			logger.Info().Int("applied", count).Msg("migrations applied")
		}
		deps.Pool = pool
	}

	srv, err := server.New(ctx, cfg, deps, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build server")
		return err
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			return err
		}
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
