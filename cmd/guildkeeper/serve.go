package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"guildkeeper/internal/bot"
	"guildkeeper/internal/dashboard"
	"guildkeeper/internal/generator"
	"guildkeeper/internal/settings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Connect to the gateway and handle messages and member joins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), runBot)
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the settings, DM log and audit HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), runDashboard)
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot and the dashboard in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return runBot(ctx, a) })
				g.Go(func() error { return runDashboard(ctx, a) })
				return g.Wait()
			})
		},
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		a.logger.Error("stopped with error", zap.Error(err))
		return err
	}
	return nil
}

func runBot(ctx context.Context, a *app) error {
	if err := a.cfg.RequireDiscord(); err != nil {
		return err
	}
	s, err := settings.Load(a.cfg.SettingsPath)
	if err != nil {
		return err
	}
	answers, err := generator.New(ctx, a.cfg.Generator)
	if err != nil {
		return err
	}

	botSvc, err := bot.New(a.cfg, a.logger.Named("bot"), s, a.store, a.audit, answers)
	if err != nil {
		return err
	}
	if err := botSvc.Start(); err != nil {
		return err
	}
	a.logger.Info("bot started",
		zap.String("provider", a.cfg.Generator.Provider),
		zap.Int("keywords", len(s.ChannelKeywords)),
		zap.Int("commands", len(s.CustomCommands)),
	)

	var health *http.Server
	if a.cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		health = &http.Server{Addr: a.cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			a.logger.Info("health endpoint enabled", zap.String("addr", a.cfg.Health.Addr))
			if err := health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	a.logger.Info("bot shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if health != nil {
		_ = health.Shutdown(shutdownCtx)
	}
	botSvc.Close(shutdownCtx)
	return nil
}

func runDashboard(ctx context.Context, a *app) error {
	server := dashboard.New(a.cfg, a.logger.Named("dashboard"), a.store)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("dashboard shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
