package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/plancraft/internal/domain"
	"github.com/felixgeelhaar/plancraft/internal/engine"
	"github.com/felixgeelhaar/plancraft/internal/health"
	"github.com/felixgeelhaar/plancraft/internal/server"
	"github.com/felixgeelhaar/plancraft/internal/version"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve plan progress, reports, and metrics over HTTP",
	Long: `Serve a read-only HTTP view of every plan in the workspace store.

Endpoints:
  GET /plans                    plan ids
  GET /plans/{id}/progress      completion figures
  GET /plans/{id}/report        full report (?format=text for plain text)
  GET /plans/{id}/next          next-task decision
  GET /healthz, /readyz         liveness and readiness probes
  GET /metrics                  Prometheus metrics

Each request reads the plan's newest checkpoint, so changes made by other
plancraft commands are visible immediately.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := current.checkpoints(ctx)
		if err != nil {
			return err
		}

		addr := current.cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		probes := health.NewProbeManager(version.Version)
		probes.AddChecker(health.NewStoreChecker(mgr.Store()))

		srv := server.NewServer(server.Config{
			Address: addr,
			Open: func(ctx context.Context, id domain.PlanID) (*engine.Engine, error) {
				return current.open(ctx, id.String())
			},
			List:     current.plans,
			Probes:   probes,
			Metrics:  current.metrics,
			Gatherer: prometheus.DefaultGatherer,
			Logger:   current.logger.Slog(),
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			current.logger.Info("shutting down http server")
			if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
				return err
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")

	rootCmd.AddCommand(serveCmd)
}
