package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/followup"
	"github.com/sells-group/outreach-cli/internal/monitoring"
	"github.com/sells-group/outreach-cli/internal/server"
)

var (
	servePort          int
	serveFollowupEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the provisioning API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		deps := server.Deps{
			Provisioner: env.Provisioner,
			Searcher:    env.Provisioner,
			Manager:     env.Manager,
			Store:       env.Store,
			Vendor:      env.Vendor,
		}
		if env.Oracle != nil {
			deps.ICP = env.Oracle
			deps.Copy = env.Oracle
		}
		api := server.New(deps, server.Options{
			JWTSecret:   cfg.Auth.JWTSecret,
			CORSOrigins: cfg.Server.CORSOrigins,
		})
		if cfg.Auth.JWTSecret == "" {
			zap.L().Warn("auth.jwt_secret not set, API is unauthenticated")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if serveFollowupEvery > 0 {
			acts := &followup.Activities{Vendor: env.Vendor, Store: env.Store, Bind: bindOptions(cfg)}
			go sweepEvery(ctx, acts, serveFollowupEvery)
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(monitoring.NewCollector(env.Store), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			api.Wait(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveFollowupEvery, "followup-every", 0, "sweep pending lead searches at this interval (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

// sweepEvery runs a follow-up sweep on every tick until ctx is done.
func sweepEvery(ctx context.Context, acts *followup.Activities, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := followup.Sweep(ctx, acts, followupParams(), 0, cfg.Followup.Concurrency, nil)
			if err != nil {
				zap.L().Warn("followup sweep failed", zap.Error(err))
				continue
			}
			if len(results) > 0 {
				zap.L().Info("followup sweep complete", zap.Int("jobs", len(results)))
			}
		}
	}
}
