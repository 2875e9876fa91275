// Package logging builds the zap loggers used across primecheck from the
// logging section of the config. Every subsystem logs through a child logger
// named after its Category, and categories can be switched off individually.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"primecheck/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup and config loading
	CategoryConfig      Category = "config"      // Config file watching and reloads
	CategoryPerformance Category = "performance" // Slow operations

	// Numeric engine categories
	CategoryParser      Category = "parser"       // Expression evaluation
	CategoryTrivial     Category = "trivial"      // Trial division and square check
	CategoryMillerRabin Category = "miller_rabin" // Miller-Rabin witness search
	CategoryLucas       Category = "lucas"        // Extra strong Lucas test
	CategoryPipeline    Category = "pipeline"     // Stage sequencing and verdicts

	// Front ends
	CategoryServer Category = "server" // HTTP service
	CategoryTUI    Category = "tui"    // Interactive terminal UI
	CategoryCLI    Category = "cli"    // One-shot commands
)

// New builds a logger from cfg. verbose forces the debug level, like the
// --verbose flag. An empty File logs to stderr.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "", "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = l
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
		zc.ErrorOutputPaths = []string{cfg.File}
	}

	disabled := disabledCategories(cfg)
	logger, err := zc.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		if len(disabled) == 0 {
			return core
		}
		return &categoryCore{Core: core, disabled: disabled}
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewForUI builds the logger for the interactive UI, which owns the terminal:
// it writes only to cfg.File and is a no-op when no file is configured.
func NewForUI(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	if cfg.File == "" {
		return zap.NewNop(), nil
	}
	return New(cfg, verbose)
}

// For returns the child logger for a category. A nil parent yields a no-op
// logger so library code never has to nil-check.
func For(l *zap.Logger, c Category) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named(string(c))
}

func disabledCategories(cfg config.LoggingConfig) map[string]bool {
	var out map[string]bool
	for name, enabled := range cfg.Categories {
		if enabled {
			continue
		}
		if out == nil {
			out = make(map[string]bool)
		}
		out[name] = true
	}
	return out
}

// categoryCore drops entries whose logger name starts with a disabled category.
type categoryCore struct {
	zapcore.Core
	disabled map[string]bool
}

func (c *categoryCore) With(fields []zapcore.Field) zapcore.Core {
	return &categoryCore{Core: c.Core.With(fields), disabled: c.disabled}
}

func (c *categoryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	root, _, _ := strings.Cut(ent.LoggerName, ".")
	if c.disabled[root] {
		return ce
	}
	return c.Core.Check(ent, ce)
}

// Timer helps measure operation duration
type Timer struct {
	log   *zap.Logger
	op    string
	start time.Time
}

// StartTimer begins timing an operation
func StartTimer(l *zap.Logger, operation string) *Timer {
	if l == nil {
		l = zap.NewNop()
	}
	return &Timer{
		log:   l,
		op:    operation,
		start: time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop(fields ...zap.Field) time.Duration {
	elapsed := time.Since(t.start)
	t.log.Debug(t.op+" completed", append(fields, zap.Duration("elapsed", elapsed))...)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration, fields ...zap.Field) time.Duration {
	elapsed := time.Since(t.start)
	fields = append(fields, zap.Duration("elapsed", elapsed))
	if threshold > 0 && elapsed > threshold {
		t.log.Warn(t.op+" slow", append(fields, zap.Duration("threshold", threshold))...)
	} else {
		t.log.Debug(t.op+" completed", fields...)
	}
	return elapsed
}
