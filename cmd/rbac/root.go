package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	chidemo "github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-rbac/pkg/app"
	"github.com/tendant/simple-rbac/pkg/bootstrap"
	"github.com/tendant/simple-rbac/pkg/config"
)

const shutdownTimeout = 15 * time.Second

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rbac",
		Short:         "Role based access control admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newSeedCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if cfg.SeedFile != "" {
				if _, err := runSeed(ctx, a, cfg.SeedFile, false); err != nil {
					return err
				}
			}
			return serve(ctx, a)
		},
	}
}

func newSeedCmd() *cobra.Command {
	var (
		file  string
		reset bool
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load permissions, roles and users from a YAML fixture",
		Long: "Load permissions, roles and users from a YAML fixture. Without --file the " +
			"built-in demo data set is used. Existing records are kept, so seeding twice is safe.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if file == "" {
				file = cfg.SeedFile
			}
			result, err := runSeed(cmd.Context(), a, file, reset)
			if err != nil {
				return err
			}
			if !quiet {
				bootstrap.PrintSeedResult(cmd.OutOrStdout(), result)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixture to load (default: built-in demo data)")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete every user, role and permission first")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the seeded records")
	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Log.JSON() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

func runSeed(ctx context.Context, a *app.App, file string, reset bool) (*bootstrap.SeedResult, error) {
	var (
		fixture *bootstrap.Fixture
		err     error
	)
	if file == "" {
		fixture, err = bootstrap.DefaultFixture()
	} else {
		fixture, err = bootstrap.LoadFixture(file)
	}
	if err != nil {
		return nil, err
	}

	result, err := bootstrap.Seed(ctx, bootstrap.SeedConfig{
		Repos:       a.Repos,
		Permissions: a.Services.Permissions,
		Roles:       a.Services.Roles,
		Users:       a.Services.Users,
		Validator:   a.Validator,
		Reset:       reset,
	}, fixture)
	if err != nil {
		return nil, fmt.Errorf("seed failed: %w", err)
	}
	bootstrap.LogSeedSummary(result)
	return result, nil
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, a *app.App) error {
	server := chidemo.DefaultApp()
	chidemo.RegisterHealthzRoutes(server.R)
	a.Routes(server.R)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(a.Config.HTTP.Port),
		Handler:           server.R,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Admin API listening", "addr", srv.Addr, "base_path", a.Config.HTTP.BasePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down admin API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		slog.Error("Failed to close store", "error", err)
	}
}
