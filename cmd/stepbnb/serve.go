package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aretw0/stepbnb"
	"github.com/aretw0/stepbnb/internal/cli"
	httpAdapter "github.com/aretw0/stepbnb/pkg/adapters/http"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/episode"
	"github.com/aretw0/stepbnb/pkg/observability"
	"github.com/aretw0/stepbnb/pkg/observation"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve episodes over HTTP",
	Long: `Starts the episode API. Every POST /episodes builds an engine and parks it at
its first node selection until the client steps or deletes the episode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
			cfg.Server.Addr = addr
		}
		logger := newLogger(cfg)

		stores := openBackends(cfg, logger)
		defer stores.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetrics(reg)

		nodesel, err := cfg.Nodesel()
		if err != nil {
			return err
		}
		envOpts := []stepbnb.Option{stepbnb.WithMetrics(metrics), stepbnb.WithNodeselParams(nodesel)}
		managerOpts := []episode.Option{episode.WithLogger(logger), episode.WithTraceStore(stores.traces)}
		if stores.locker != nil {
			envOpts = append(envOpts, stepbnb.WithLocker(stores.locker))
			managerOpts = append(managerOpts, episode.WithLocker(stores.locker))
		}
		managerOpts = append(managerOpts, episode.WithEnvOptions(envOpts...))
		episodes := episode.NewManager[domain.FocusNodeInfo](observation.FocusNode{}, managerOpts...)

		handler := httpAdapter.NewHandler(episodes,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithGatherer(reg),
			httpAdapter.WithEngineOptions(cfg.EngineOptions(logger)...),
		)
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting stepbnb server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			logger.Info("Start shutdown", "signal", ctx.Signal())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("Error killing server", "err", err)
				}
			}
		}

		if err := episodes.Close(context.Background()); err != nil {
			logger.Warn("Failed to close episodes", "err", err)
		}
		logger.Info("stepbnb server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}
