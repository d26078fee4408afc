package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			router, err := rt.app.BuildRouter(rt.cfg, rt.logger)
			if err != nil {
				return err
			}

			var scheduler *cron.Cron
			if rt.cfg.ScoreSchedule != "" {
				scheduler = cron.New()
				if _, err := scheduler.AddFunc(rt.cfg.ScoreSchedule, func() {
					snaps, err := rt.app.Services.Runner.RunAll(ctx)
					if err != nil {
						rt.logger.Error("scheduled scoring run failed", "error", err)
						return
					}
					rt.logger.Info("scheduled scoring run complete", "tables", len(snaps))
				}); err != nil {
					return err
				}
				scheduler.Start()
				rt.logger.Info("scoring scheduler started", "schedule", rt.cfg.ScoreSchedule)
			}

			srv := &http.Server{
				Addr:              rt.cfg.ListenAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("http api listening", "addr", rt.cfg.ListenAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down")
			if scheduler != nil {
				<-scheduler.Stop().Done()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
