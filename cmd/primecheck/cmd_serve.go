package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"primecheck/internal/config"
	"primecheck/internal/logging"
	"primecheck/internal/metrics"
	"primecheck/internal/pipeline"
	"primecheck/internal/server"
)

var serveAddr string

// serveCmd runs the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve primality checks over HTTP",
	Long: `Starts the HTTP service:

  POST /v1/check   {"input": "2+3*5"}
  GET  /healthz
  GET  /metrics

With --trace stdout (or tracing.exporter: stdout) every query is exported as
a primecheck.check span with one child span per stage.

With server.watch_config set, edits to the config file replace the engine
settings for subsequent requests without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	tp, err := startTracing(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer stopTracing(tp)

	build := func(ec config.EngineConfig) *pipeline.Engine {
		return newEngine(ec, pipeline.WithMetrics(m), pipeline.WithTracerProvider(tp))
	}

	srv := server.New(cfg, build(cfg.Engine), reg, logger)

	if cfg.Server.WatchConfig {
		w, err := config.NewWatcher(configPath, func(c *config.Config) {
			if serveAddr != "" {
				c.Server.Addr = serveAddr
			}
			srv.Reload(c, build)
		}, logging.For(logger, logging.CategoryConfig))
		if err != nil {
			logging.For(logger, logging.CategoryConfig).Warn("Config watching disabled", zap.Error(err))
		} else {
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
		}
	}

	return srv.ListenAndServe(ctx)
}
