package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/surveyform/internal/api"
	"github.com/soaringjerry/surveyform/internal/events"
	"github.com/soaringjerry/surveyform/internal/metrics"
	"github.com/soaringjerry/surveyform/internal/middleware"
	"github.com/soaringjerry/surveyform/internal/services"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if cfg.InsecureSecret() {
				logger.Warn("using the development JWT secret; set SURVEY_JWT_SECRET in production")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			be, err := openBackend(ctx, cfg.Store, logger)
			if err != nil {
				return err
			}
			defer be.close()

			drafts, closeDrafts, err := openDrafts(ctx, cfg.Drafts)
			if err != nil {
				return err
			}
			defer closeDrafts()

			completions := services.NewCompletionSignal()
			if cfg.NATS.URL != "" {
				nc, err := events.Connect(cfg.NATS.URL, "survey-server", logger)
				if err != nil {
					return err
				}
				defer nc.Drain()
				completions.Connect(events.NewNATSPublisher(nc, cfg.NATS.Subject, logger).Handle)
				logger.Info("publishing completion events", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
			}

			reg := metrics.NewRegistry()
			rt := api.NewRouter(api.Options{
				Store:          be.store,
				Drafts:         drafts,
				Signal:         completions,
				Signer:         middleware.NewSigner(cfg.JWTSecret),
				Metrics:        metrics.NewMetrics(reg),
				MetricsHandler: metrics.Handler(reg),
				Logger:         logger,
				Locales:        cfg.Locales,
				SecureCookies:  cfg.SecureCookies,
				CORSOrigins:    cfg.CORSOrigins,
				Ping:           be.healthCheck(),
			})

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           rt.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("survey server listening", "addr", cfg.Addr, "store", cfg.Store.Driver, "drafts", cfg.Drafts.Driver)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
