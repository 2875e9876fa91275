package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"primecheck/cmd/primecheck/console"
	"primecheck/cmd/primecheck/ui"
	"primecheck/internal/config"
	"primecheck/internal/logging"
	"primecheck/internal/pipeline"
	"primecheck/internal/tracing"
)

var (
	// Global flags
	configPath    string
	verbose       bool
	timeout       time.Duration
	traceExporter string

	// Loaded in PersistentPreRunE
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "primecheck",
	Short: "Evaluate integer expressions and test the result for primality",
	Long: `primecheck evaluates an arithmetic expression over non-negative integers
(+ - * / % ! and parentheses) and reports whether the value is prime.

The test is a trial division filter followed by Miller-Rabin and an
extra strong Lucas test.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if traceExporter != "" {
			cfg.Tracing.Exporter = traceExporter
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", configPath, err)
		}

		// The interactive UI owns the terminal and logs to a file or nowhere.
		if cmd == cmd.Root() {
			logger, err = logging.NewForUI(cfg.Logging, verbose)
		} else {
			logger, err = logging.New(cfg.Logging, verbose)
		}
		if err != nil {
			return err
		}
		logging.For(logger, logging.CategoryBoot).Debug("Config loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Abandon a query after this long (0 = never)")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace", "", "Span exporter for check and serve: none, stdout (overrides tracing.exporter)")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newEngine builds an engine from the engine section, logging to the command
// logger.
func newEngine(ec config.EngineConfig, opts ...pipeline.Option) *pipeline.Engine {
	opts = append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	return pipeline.NewEngine(pipeline.SettingsFromConfig(ec), opts...)
}

// startTracing builds the tracer provider from the tracing section. The stdout
// exporter writes to w unless tracing.file is set.
func startTracing(w io.Writer) (*tracing.Provider, error) {
	tp, err := tracing.New(cfg.Tracing, w)
	if err != nil {
		return nil, err
	}
	if cfg.Tracing.Enabled() {
		logging.For(logger, logging.CategoryBoot).Debug("Tracing enabled",
			zap.String("exporter", cfg.Tracing.Exporter),
			zap.Float64("sample_ratio", cfg.Tracing.SampleRatio))
	}
	return tp, nil
}

// stopTracing flushes buffered spans.
func stopTracing(tp *tracing.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		logging.For(logger, logging.CategoryBoot).Warn("Failed to flush spans", zap.Error(err))
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM and, when the
// --timeout flag is set, after that long.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// runInteractive launches the full-screen UI.
func runInteractive(cmd *cobra.Command, args []string) error {
	logging.For(logger, logging.CategoryTUI).Info("Starting interactive UI")
	return console.Run(console.Config{
		Engine:     newEngine(cfg.Engine),
		Styles:     ui.NewStyles(ui.ThemeFor(cfg.UI.Theme)),
		SpinnerFPS: cfg.UI.SpinnerFPS,
		Logger:     logger,
	})
}
