package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"primecheck/internal/config"
	"primecheck/internal/metrics"
	"primecheck/internal/pipeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	engine := pipeline.NewEngine(pipeline.DefaultSettings(), pipeline.WithMetrics(metrics.New(reg)))
	return New(config.DefaultConfig(), engine, reg, zap.NewNop())
}

func postCheck(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, CheckResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/check", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp CheckResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func TestCheck_Verdicts(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		input   string
		result  string
		verdict string
		digits  int
	}{
		{"2+3*5", "Result: Prime", "prime", 2},
		{"5!", "Result: Not prime", "composite", 3},
		{"961748941", "Result: Prime", "prime", 9},
		{"0", "Result: Not prime", "composite", 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			body, _ := json.Marshal(CheckRequest{Input: tt.input})
			rec, resp := postCheck(t, h, string(body))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.result, resp.Result)
			assert.Equal(t, tt.verdict, resp.Verdict)
			assert.Equal(t, tt.digits, resp.Digits)
			assert.NotEmpty(t, resp.QueryID)
			assert.Nil(t, resp.Error)
		})
	}
}

func TestCheck_ParseError(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, resp := postCheck(t, h, `{"input": "1/0"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Parse error: Division by zero", resp.Result)
	assert.Empty(t, resp.Verdict)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "division_by_zero", resp.Error.Kind)
	require.NotNil(t, resp.Error.Position)
	assert.Equal(t, 1, *resp.Error.Position)

	rec, resp = postCheck(t, h, `{"input": "x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_character", resp.Error.Kind)
	require.NotNil(t, resp.Error.Position)
	assert.Equal(t, 0, *resp.Error.Position)
}

func TestCheck_BadRequest(t *testing.T) {
	h := newTestServer(t).Handler()

	for _, body := range []string{"", "{", `{"input": 7}`, "not json"} {
		rec, resp := postCheck(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.NotNil(t, resp.Error, body)
		assert.Equal(t, "bad_request", resp.Error.Kind)
	}
}

func TestCheck_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/check", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCheck_ClientGoneWritesNothing(t *testing.T) {
	h := newTestServer(t).Handler()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/check", strings.NewReader(`{"input": "7"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestCheck_Timeout(t *testing.T) {
	s := newTestServer(t)
	s.SetQueryTimeout(20 * time.Millisecond)

	start := time.Now()
	rec, resp := postCheck(t, s.Handler(), `{"input": "1000!+1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "timeout", resp.Error.Kind)
	assert.Equal(t, "Result: -", resp.Result)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSetEngine(t *testing.T) {
	s := newTestServer(t)

	rec, _ := postCheck(t, s.Handler(), `{"input": "5!"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	settings := pipeline.DefaultSettings()
	settings.Parser.FactorialCeiling = 3
	s.SetEngine(pipeline.NewEngine(settings))

	rec, resp := postCheck(t, s.Handler(), `{"input": "5!"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "factorial_argument_too_large", resp.Error.Kind)
}

func TestReload(t *testing.T) {
	s := newTestServer(t)

	cfg := config.DefaultConfig()
	cfg.Engine.MaxInputLength = 4
	cfg.Server.QueryTimeout = "1ms"
	s.Reload(cfg, func(c config.EngineConfig) *pipeline.Engine {
		return pipeline.NewEngine(pipeline.SettingsFromConfig(c))
	})

	assert.Equal(t, time.Millisecond, time.Duration(s.queryTimeout.Load()))
	rec, resp := postCheck(t, s.Handler(), `{"input": "12345"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "input_too_long", resp.Error.Kind)
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t).Handler()
	postCheck(t, h, `{"input": "7"}`)
	postCheck(t, h, `{"input": "("}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `primecheck_verdicts_total{verdict="prime"} 1`)
	assert.Contains(t, body, `primecheck_parse_errors_total{kind="unexpected_end"} 1`)
	assert.Contains(t, body, "primecheck_stage_duration_seconds_bucket")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.MaxConnections = 2
	cfg.Server.ShutdownTimeout = "2s"
	s := New(cfg, pipeline.NewEngine(pipeline.DefaultSettings()), nil, zap.NewNop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post("http://"+ln.Addr().String()+"/v1/check", "application/json", strings.NewReader(`{"input":"97"}`))
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Result: Prime")
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestListenAndServe_BadAddr(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Addr = "256.0.0.1:bad"
	s := New(cfg, pipeline.NewEngine(pipeline.DefaultSettings()), nil, zap.NewNop())
	err := s.ListenAndServe(context.Background())
	assert.ErrorContains(t, err, "listen on")
}
