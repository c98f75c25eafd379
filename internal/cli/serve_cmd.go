package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sdoering/warp/internal/config"
	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/metrics"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/router"
	"github.com/sdoering/warp/internal/service"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides WARP_PORT)")
	return cmd
}

// serve wires the application and blocks until ctx is cancelled or the
// listener fails.
func serve(ctx context.Context, cfg config.Config) error {
	log := cfg.NewLogger()
	slog.SetDefault(log)

	db, err := database.Connect(ctx, cfg.Database, cfg.DatabaseInitRetries, cfg.DatabaseInitRetriesDelay, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	repos := repository.NewRepos(db)
	if _, err := service.NewAccounts(repos.Users, cfg.SecretKey, log).EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}

	rdb := config.NewRedisClient(cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	metrics.Init()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.RegisterRoutes(e, router.Deps{
		Config: cfg,
		Repos:  repos,
		Redis:  rdb,
		Events: service.NewPublisher(cfg.AMQPURL),
		Log:    log,
	})

	e.Server.ReadHeaderTimeout = 15 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", ":"+cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
