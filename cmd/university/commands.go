package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SeerNT/UniversityAPI/internal/app"
	"github.com/SeerNT/UniversityAPI/internal/auth"
	"github.com/SeerNT/UniversityAPI/internal/config"
	"github.com/SeerNT/UniversityAPI/internal/db"
	"github.com/SeerNT/UniversityAPI/internal/logger"
	"github.com/SeerNT/UniversityAPI/internal/major"
	"github.com/SeerNT/UniversityAPI/internal/metrics"
	"github.com/SeerNT/UniversityAPI/internal/user"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var envFlag string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "university",
		Short:         "University records API",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&envFlag, "env", "", "config environment (defaults to $ENV or local)")

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newGrantAdminCmd(),
		newRecountCmd(),
	)
	return cmd
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	if envFlag != "" {
		_ = os.Setenv("ENV", envFlag)
	}

	log := logger.NewWithServiceContext(app.ServiceName, app.Version)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log.Info("config loaded", "env", cfg.Env)
	return cfg, log, nil
}

// withDB runs fn against a migrated database and closes it afterwards.
func withDB(fn func(ctx context.Context, cfg *config.Config, log *slog.Logger, database *bun.DB) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close(database)

	ctx := context.Background()
	if err := app.Migrate(ctx, database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return fn(ctx, cfg, log, database)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := app.New(cfg, log)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.Run()
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil {
					log.Error("server failed", "error", err)
				}
			case sig := <-quit:
				log.Info("signal received", "signal", sig.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := application.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			log.Info("server exited gracefully")
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, log *slog.Logger, database *bun.DB) error {
				log.Info("migrations applied")
				return nil
			})
		},
	}
}

func newGrantAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant-admin <email>",
		Short: "Give a registered user access to admin routes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, log *slog.Logger, database *bun.DB) error {
				tokenCfg, err := auth.NewTokenConfig(cfg.Auth)
				if err != nil {
					return err
				}
				hasher, err := auth.NewHasher(cfg.Auth.BcryptCost)
				if err != nil {
					return err
				}

				m := metrics.NewMock()
				svc := auth.NewService(user.NewRepository(database, m), hasher, auth.NewTokens(tokenCfg), log, m)
				if err := svc.GrantAdmin(ctx, args[0]); err != nil {
					return fmt.Errorf("grant admin to %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", args[0])
				return nil
			})
		},
	}
}

func newRecountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recount-majors",
		Short: "Rebuild count_students for every major from the students table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, log *slog.Logger, database *bun.DB) error {
				n, err := major.NewCounter(metrics.NewMock()).Recount(ctx, database)
				if err != nil {
					return err
				}
				log.Info("major counts rebuilt", "majors", n)
				fmt.Fprintf(cmd.OutOrStdout(), "recounted %d majors\n", n)
				return nil
			})
		},
	}
}
