package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"primecheck/internal/expr"
	"primecheck/internal/metrics"
	"primecheck/internal/primality"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// slowInput parses quickly but keeps Miller-Rabin busy for about a second.
const slowInput = "1000!+1"

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(DefaultSettings(), opts...)
}

func TestCheck_Messages(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		input string
		want  string
	}{
		{"2+3*5", "Result: Prime"},
		{"5!", "Result: Not prime"},
		{"5!-1", "Result: Not prime"},
		{"3!-1", "Result: Prime"},
		{"0", "Result: Not prime"},
		{"1", "Result: Not prime"},
		{"2", "Result: Prime"},
		{"  7  ", "Result: Prime"},
		{"997", "Result: Prime"},
		{"1009", "Result: Prime"},
		{"1009*1013", "Result: Not prime"},
		{"961748941", "Result: Prime"},
		{"2305843009213693951", "Result: Prime"},
		{"1/0", "Parse error: Division by zero"},
		{"1%0", "Parse error: Modulo by zero"},
		{"3-5", "Parse error: Negative result"},
		{"(1+2", "Parse error: Unclosed parenthesis"},
		{"2+", "Parse error: Unexpected end of input"},
		{"2a", "Parse error: Unexpected character 'a'"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			out, err := e.Check(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Message())
		})
	}
}

func TestCheck_ParseErrorCarriesPosition(t *testing.T) {
	out, err := newTestEngine().Check(context.Background(), "12 + x")
	require.NoError(t, err)
	require.NotNil(t, out.ParseErr)
	assert.Equal(t, expr.InvalidCharacter, out.ParseErr.Kind)
	assert.Equal(t, 5, out.ParseErr.Pos)
	assert.Zero(t, out.Digits)
	require.Len(t, out.Stages, 1)
	assert.Equal(t, StageParse, out.Stages[0].Stage)
}

func TestCheck_StagesShortCircuit(t *testing.T) {
	e := newTestEngine()

	// Even: decided by the trivial filter.
	out, err := e.Check(context.Background(), "1000")
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageParse, StageTrivial}, stagesOf(out))
	assert.Equal(t, 4, out.Digits)

	// Small prime above the table: fast path, no probabilistic stage.
	out, err = e.Check(context.Background(), "1009")
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageParse, StageTrivial}, stagesOf(out))
	assert.Equal(t, primality.Prime, out.Verdict)

	// Large prime: every stage runs.
	out, err = e.Check(context.Background(), "961748941")
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageParse, StageTrivial, StageMillerRabin, StageLucas}, stagesOf(out))
	assert.Equal(t, "probable_prime", out.Stages[3].Result)
}

func TestCheck_StrongPseudoprimeCaughtByLucas(t *testing.T) {
	// 25326001 = 2251 * 11251 is a strong pseudoprime to bases 2, 3 and 5.
	s := DefaultSettings()
	s.MillerRabinRounds = 0
	out, err := NewEngine(s).Check(context.Background(), "25326001")
	require.NoError(t, err)
	assert.Equal(t, primality.Composite, out.Verdict)
	assert.Equal(t, []Stage{StageParse, StageTrivial, StageMillerRabin, StageLucas}, stagesOf(out))
	assert.Equal(t, "probable_prime", out.Stages[2].Result)
}

func TestCheck_Deterministic(t *testing.T) {
	e := newTestEngine()
	inputs := []string{"2305843009213693952", "(2+3)*7!+1", "18446744073709551557", "41041", "97!+1"}
	for _, in := range inputs {
		first, err := e.Check(context.Background(), in)
		require.NoError(t, err)
		second, err := e.Check(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, first.Message(), second.Message(), in)
		assert.NotEqual(t, first.QueryID, second.QueryID)
	}
}

func TestCheck_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newTestEngine().Check(ctx, "7")
	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.Stages)
}

func TestCheck_DeadlineDuringMillerRabin(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestEngine().Check(ctx, slowInput)
	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCheck_ConcurrentQueries(t *testing.T) {
	e := newTestEngine()
	inputs := map[string]string{
		"2147483647":  "Result: Prime",
		"4294967297":  "Result: Not prime",
		"11!+1":       "Result: Prime",
		"10!+1":       "Result: Not prime",
		"(7":          "Parse error: Unclosed parenthesis",
		"999983":      "Result: Prime",
		"999981":      "Result: Not prime",
		"65537*65537": "Result: Not prime",
	}

	var wg sync.WaitGroup
	for in, want := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Check(context.Background(), in)
			if assert.NoError(t, err) {
				assert.Equal(t, want, out.Message(), in)
			}
		}()
	}
	wg.Wait()
}

func TestCheck_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := newTestEngine(WithMetrics(m))

	for _, in := range []string{"7", "8", "961748941", "1/0"} {
		_, err := e.Check(context.Background(), in)
		require.NoError(t, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Check(ctx, "7")
	require.ErrorIs(t, err, ErrCancelled)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("prime")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues("composite")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseErrors.WithLabelValues("division_by_zero")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cancelled))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestCheck_LogsUnderStageCategories(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := newTestEngine(WithLogger(zap.New(core)), WithTracerProvider(noop.NewTracerProvider()))

	out, err := e.Check(context.Background(), "961748941")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, entry := range logs.All() {
		names[entry.LoggerName] = true
		assert.Equal(t, out.QueryID.String(), entry.ContextMap()["query_id"])
	}
	for _, want := range []string{"pipeline", "parser", "trivial", "miller_rabin", "lucas"} {
		assert.True(t, names[want], "no entries from %s", want)
	}
	finished := logs.FilterMessage("Query finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "prime", finished[0].ContextMap()["verdict"])
}

func TestCheck_SlowStageWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := DefaultSettings()
	s.SlowStage = time.Nanosecond
	e := NewEngine(s, WithLogger(zap.New(core)))

	_, err := e.Check(context.Background(), "961748941")
	require.NoError(t, err)

	slow := logs.FilterMessage("miller_rabin slow").All()
	require.Len(t, slow, 1)
	assert.Equal(t, "miller_rabin", slow[0].LoggerName)
	assert.Contains(t, slow[0].ContextMap(), "threshold")
}

func TestCheck_NoSlowWarningWhenDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := DefaultSettings()
	s.SlowStage = 0
	_, err := NewEngine(s, WithLogger(zap.New(core))).Check(context.Background(), "961748941")
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestDefaultSettings_FactorialCeiling(t *testing.T) {
	e := newTestEngine()

	out, err := e.Check(context.Background(), "1001!")
	require.NoError(t, err)
	assert.Equal(t, "Parse error: Factorial argument too large (limit 1000)", out.Message())

	out, err = e.Check(context.Background(), "1000! + 1 - 1")
	require.NoError(t, err)
	assert.Equal(t, "Result: Not prime", out.Message())
}

// recordSpans returns an engine whose spans land in the returned recorder.
func recordSpans(t *testing.T, opts ...Option) (*Engine, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return newTestEngine(append(opts, WithTracerProvider(tp))...), sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestCheck_Spans(t *testing.T) {
	e, sr := recordSpans(t)

	out, err := e.Check(context.Background(), "961748941")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 5)
	root := spans[len(spans)-1]
	assert.Equal(t, "primecheck.check", root.Name())
	assert.Equal(t, out.QueryID.String(), spanAttr(root, "query.id").AsString())
	assert.Equal(t, "prime", spanAttr(root, "verdict").AsString())
	assert.Equal(t, int64(9), spanAttr(root, "value.digits").AsInt64())

	want := []struct {
		name   string
		result string
	}{
		{"primecheck.stage.parse", "ok"},
		{"primecheck.stage.trivial", "passed"},
		{"primecheck.stage.miller_rabin", "probable_prime"},
		{"primecheck.stage.lucas", "probable_prime"},
	}
	for i, w := range want {
		child := spans[i]
		assert.Equal(t, w.name, child.Name())
		assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID(), w.name)
		assert.Equal(t, root.SpanContext().TraceID(), child.SpanContext().TraceID(), w.name)
		assert.Equal(t, w.result, spanAttr(child, "stage.result").AsString(), w.name)
	}
}

func TestCheck_SpansParseError(t *testing.T) {
	e, sr := recordSpans(t)

	_, err := e.Check(context.Background(), "1/0")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	parse, root := spans[0], spans[1]
	assert.Equal(t, "primecheck.stage.parse", parse.Name())
	assert.Equal(t, codes.Error, parse.Status().Code)
	assert.Equal(t, "division_by_zero", spanAttr(root, "parse_error.kind").AsString())
}

func TestCheck_SpansCancelled(t *testing.T) {
	e, sr := recordSpans(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Check(ctx, slowInput)
	require.ErrorIs(t, err, ErrCancelled)

	spans := sr.Ended()
	require.NotEmpty(t, spans)
	root := spans[len(spans)-1]
	assert.Equal(t, "primecheck.check", root.Name())
	assert.Equal(t, codes.Error, root.Status().Code)
	assert.Equal(t, "cancelled", root.Status().Description)
}

func TestJob_DeliversOnce(t *testing.T) {
	job := Start(context.Background(), newTestEngine(), "2+3*5")

	out, ok := <-job.Done()
	require.True(t, ok)
	assert.Equal(t, "Result: Prime", out.Message())

	_, ok = <-job.Done()
	assert.False(t, ok)

	job.Wait()
	assert.Equal(t, StateDone, job.State())
	assert.NoError(t, job.Err())
}

func TestJob_ParseErrorState(t *testing.T) {
	job := Start(context.Background(), newTestEngine(), "1/0")
	out := <-job.Done()
	job.Wait()
	assert.Equal(t, "Parse error: Division by zero", out.Message())
	assert.Equal(t, StateError, job.State())
}

func TestJob_CancelDuringMillerRabin(t *testing.T) {
	e := newTestEngine()
	job := Start(context.Background(), e, slowInput)

	require.Eventually(t, func() bool {
		return job.State() == StateMillerRabin
	}, 10*time.Second, time.Millisecond)

	job.Cancel()
	job.Cancel()

	select {
	case out, ok := <-job.Done():
		assert.False(t, ok, "cancelled job delivered %q", out.Message())
	case <-time.After(10 * time.Second):
		t.Fatal("job did not stop after Cancel")
	}
	job.Wait()
	assert.Equal(t, StateCancelled, job.State())
	assert.NoError(t, job.Err())

	// The engine keeps serving after an abandoned query.
	next := Start(context.Background(), e, "5!")
	out := <-next.Done()
	next.Wait()
	assert.Equal(t, "Result: Not prime", out.Message())
}

func TestJob_CancelAfterFinishDiscardsOutcome(t *testing.T) {
	job := Start(context.Background(), newTestEngine(), "7")
	job.Wait()
	job.Cancel()

	_, ok := <-job.Done()
	assert.False(t, ok)
}

func TestJob_ParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := Start(ctx, newTestEngine(), slowInput)
	cancel()
	job.Wait()

	_, ok := <-job.Done()
	assert.False(t, ok)
	assert.True(t, errors.Is(job.Err(), ErrCancelled))
	assert.Equal(t, StateCancelled, job.State())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "trivial_check", StateTrivialCheck.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateLucas.Terminal())
}

func stagesOf(out Outcome) []Stage {
	var s []Stage
	for _, st := range out.Stages {
		s = append(s, st.Stage)
	}
	return s
}
