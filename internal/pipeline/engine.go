// Package pipeline runs one primality query end to end: parse, trivial filter,
// Miller-Rabin, extra strong Lucas, with short-circuit exits and a small-number
// fast path. Engine.Check is the synchronous entry point; Start runs a query on
// its own goroutine behind a cancellable Job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"primecheck/internal/bigint"
	"primecheck/internal/config"
	"primecheck/internal/expr"
	"primecheck/internal/logging"
	"primecheck/internal/metrics"
	"primecheck/internal/primality"
)

// ErrCancelled is returned by Check when the query was abandoned. It is not a
// verdict and not a parse error; the context's own error is wrapped with it.
var ErrCancelled = errors.New("query cancelled")

const tracerName = "primecheck/internal/pipeline"

// Settings are the engine parameters, normally taken from config.EngineConfig.
type Settings struct {
	Parser            expr.Options
	TrialLimit        uint32
	SmallBits         int
	MillerRabinRounds int
	Seed              uint64
	// SlowStage is the duration above which a stage logs a warning; 0 disables it.
	SlowStage time.Duration
}

// DefaultSettings mirrors config.DefaultConfig().Engine.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.DefaultConfig().Engine)
}

// SettingsFromConfig converts the engine section of the config file.
func SettingsFromConfig(c config.EngineConfig) Settings {
	return Settings{
		Parser: expr.Options{
			FactorialCeiling: c.FactorialCeiling,
			MaxInputLength:   c.MaxInputLength,
		},
		TrialLimit:        c.TrialLimit,
		SmallBits:         c.SmallBits,
		MillerRabinRounds: c.MillerRabinRounds,
		Seed:              c.Seed,
		SlowStage:         c.GetSlowStageWarning(),
	}
}

// Engine is immutable after construction and safe for concurrent queries.
type Engine struct {
	parser    *expr.Parser
	sieve     *primality.Sieve
	smallBits int
	slowStage time.Duration
	mr        primality.Tester
	lucas     primality.Tester

	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the root logger; stages log under their own categories.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records stage latencies and outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracerProvider sets the provider for per-stage spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithTesters replaces the probabilistic stages. Both run in order after the
// trivial filter; either may return Composite to end the query.
func WithTesters(millerRabin, lucas primality.Tester) Option {
	return func(e *Engine) {
		e.mr = millerRabin
		e.lucas = lucas
	}
}

// NewEngine builds an engine. The prime table is sieved once here.
func NewEngine(s Settings, opts ...Option) *Engine {
	e := &Engine{
		parser:    expr.New(s.Parser),
		sieve:     primality.NewSieve(s.TrialLimit),
		smallBits: s.SmallBits,
		slowStage: s.SlowStage,
		mr:        primality.MillerRabin{Rounds: s.MillerRabinRounds, Seed: s.Seed},
		lucas:     primality.ExtraStrongLucas{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.tracer == nil {
		e.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	return e
}

// StageTiming records how long one stage ran and what it answered.
type StageTiming struct {
	Stage   Stage
	Elapsed time.Duration
	Result  string
}

// Outcome is the terminal result of a query that was not cancelled: either a
// verdict (Prime or Composite) or a parse error.
type Outcome struct {
	QueryID  uuid.UUID
	Verdict  primality.Verdict
	ParseErr *expr.ParseError
	// Digits is the decimal length of the evaluated value; 0 on parse errors.
	Digits  int
	Stages  []StageTiming
	Elapsed time.Duration
}

// Message is the single line shown to the user.
func (o Outcome) Message() string {
	switch {
	case o.ParseErr != nil:
		return "Parse error: " + o.ParseErr.Error()
	case o.Verdict == primality.Prime:
		return "Result: Prime"
	default:
		return "Result: Not prime"
	}
}

// Check runs the whole pipeline on input. The context is checked at every
// stage boundary and inside the probabilistic stages; once it is done Check
// returns an error wrapping ErrCancelled and no Outcome.
func (e *Engine) Check(ctx context.Context, input string) (Outcome, error) {
	return e.run(ctx, input, nil)
}

func (e *Engine) run(ctx context.Context, input string, observe func(State)) (Outcome, error) {
	q := &query{
		engine:  e,
		out:     Outcome{QueryID: uuid.New()},
		observe: observe,
		start:   time.Now(),
	}
	q.log = logging.For(e.log, logging.CategoryPipeline).With(zap.String("query_id", q.out.QueryID.String()))

	ctx, q.span = e.tracer.Start(ctx, "primecheck.check", trace.WithAttributes(
		attribute.String("query.id", q.out.QueryID.String()),
		attribute.Int("input.length", len(input)),
	))
	defer q.span.End()
	defer e.metrics.QueryStarted()()

	if err := ctx.Err(); err != nil {
		return q.cancelled(err)
	}

	// Parsing
	q.enter(StateParsing)
	var n bigint.Nat
	err := q.stage(ctx, StageParse, func(context.Context) (string, error) {
		v, err := e.parser.Parse(input)
		if err != nil {
			return "error", err
		}
		n = v
		return "ok", nil
	})
	if err != nil {
		var pe *expr.ParseError
		if !errors.As(err, &pe) {
			return Outcome{}, fmt.Errorf("parse: %w", err)
		}
		return q.parseError(pe)
	}
	q.out.Digits = n.DecimalDigits()
	q.span.SetAttributes(attribute.Int("value.digits", q.out.Digits), attribute.Int("value.bits", n.BitLen()))

	// Trivial filter
	if err := ctx.Err(); err != nil {
		return q.cancelled(err)
	}
	q.enter(StateTrivialCheck)
	var trivial primality.TrivialResult
	_ = q.stage(ctx, StageTrivial, func(context.Context) (string, error) {
		trivial = e.sieve.Trivial(n)
		return trivial.String(), nil
	})
	switch {
	case trivial == primality.TrivialComposite:
		return q.finish(primality.Composite)
	case trivial == primality.TrivialPrime:
		return q.finish(primality.Prime)
	case n.BitLen() <= e.smallBits:
		// Every composite this small has a factor in the table.
		return q.finish(primality.Prime)
	}

	// Probabilistic stages
	for _, st := range []struct {
		state  State
		stage  Stage
		tester primality.Tester
	}{
		{StateMillerRabin, StageMillerRabin, e.mr},
		{StateLucas, StageLucas, e.lucas},
	} {
		if err := ctx.Err(); err != nil {
			return q.cancelled(err)
		}
		q.enter(st.state)
		var v primality.Verdict
		err := q.stage(ctx, st.stage, func(ctx context.Context) (string, error) {
			var err error
			v, err = st.tester.Test(ctx, n)
			if err != nil {
				return "cancelled", err
			}
			return v.String(), nil
		})
		if err != nil {
			return q.cancelled(err)
		}
		if v == primality.Composite {
			return q.finish(primality.Composite)
		}
	}
	return q.finish(primality.Prime)
}

// query is the per-call state of one run.
type query struct {
	engine  *Engine
	out     Outcome
	log     *zap.Logger
	span    trace.Span
	observe func(State)
	start   time.Time
}

func (q *query) enter(s State) {
	if q.observe != nil {
		q.observe(s)
	}
	q.log.Debug("State transition", zap.Stringer("state", s))
}

// stage runs fn as one timed, traced stage and appends its timing.
func (q *query) stage(ctx context.Context, s Stage, fn func(context.Context) (string, error)) error {
	ctx, span := q.engine.tracer.Start(ctx, "primecheck.stage."+string(s))
	defer span.End()

	stageLog := logging.For(q.engine.log, s.category()).With(zap.String("query_id", q.out.QueryID.String()))
	timer := logging.StartTimer(stageLog, string(s))
	result, err := fn(ctx)
	elapsed := timer.StopWithThreshold(q.engine.slowStage, zap.String("result", result))

	q.engine.metrics.ObserveStage(string(s), elapsed)
	span.SetAttributes(attribute.String("stage.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	q.out.Stages = append(q.out.Stages, StageTiming{Stage: s, Elapsed: elapsed, Result: result})
	return err
}

func (q *query) finish(v primality.Verdict) (Outcome, error) {
	q.out.Verdict = v
	q.out.Elapsed = time.Since(q.start)
	q.enter(StateDone)

	q.engine.metrics.IncrementVerdict(v.String())
	q.engine.metrics.ObserveQuery(q.out.Elapsed)
	q.span.SetAttributes(attribute.String("verdict", v.String()))
	q.log.Info("Query finished",
		zap.Stringer("verdict", v),
		zap.Int("digits", q.out.Digits),
		zap.Duration("elapsed", q.out.Elapsed))
	return q.out, nil
}

func (q *query) parseError(pe *expr.ParseError) (Outcome, error) {
	q.out.ParseErr = pe
	q.out.Elapsed = time.Since(q.start)
	q.enter(StateError)

	q.engine.metrics.IncrementParseError(pe.Kind.String())
	q.engine.metrics.ObserveQuery(q.out.Elapsed)
	q.span.SetAttributes(attribute.String("parse_error.kind", pe.Kind.String()))
	q.log.Info("Query rejected",
		zap.Stringer("kind", pe.Kind),
		zap.Int("position", pe.Pos),
		zap.String("reason", pe.Reason))
	return q.out, nil
}

func (q *query) cancelled(err error) (Outcome, error) {
	q.enter(StateCancelled)
	q.engine.metrics.IncrementCancelled()
	q.span.SetStatus(codes.Error, "cancelled")
	q.log.Debug("Query cancelled", zap.Error(err))
	return Outcome{}, fmt.Errorf("%w: %w", ErrCancelled, err)
}
