// Package server exposes the primality pipeline over HTTP.
//
// Routes:
//
//	POST /v1/check   {"input": "..."} -> verdict or parse error
//	GET  /healthz    liveness
//	GET  /metrics    Prometheus exposition
//
// The engine behind /v1/check can be swapped at runtime (config reload);
// requests already running keep the engine they started with.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"primecheck/internal/config"
	"primecheck/internal/logging"
	"primecheck/internal/pipeline"
)

// Server is the HTTP front end. Create with New; it is safe for concurrent use.
type Server struct {
	engine       atomic.Pointer[pipeline.Engine]
	queryTimeout atomic.Int64

	cfg             config.ServerConfig
	shutdownTimeout time.Duration
	gatherer        prometheus.Gatherer
	log             *zap.Logger
	router          chi.Router
}

// New builds a server around engine. gatherer backs /metrics and is usually
// the registry the engine's metrics were registered on.
func New(cfg *config.Config, engine *pipeline.Engine, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	s := &Server{
		cfg:             cfg.Server,
		shutdownTimeout: cfg.GetShutdownTimeout(),
		gatherer:        gatherer,
		log:             logging.For(log, logging.CategoryServer),
	}
	s.engine.Store(engine)
	s.queryTimeout.Store(int64(cfg.GetQueryTimeout()))
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/check", s.handleCheck)
	})
	return r
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetEngine replaces the engine used by subsequent requests.
func (s *Server) SetEngine(e *pipeline.Engine) {
	s.engine.Store(e)
	s.log.Info("Engine replaced")
}

// SetQueryTimeout changes the per-request limit. Zero or negative disables it.
func (s *Server) SetQueryTimeout(d time.Duration) {
	s.queryTimeout.Store(int64(d))
}

// Reload applies a reloaded config: the engine is rebuilt by newEngine and the
// query timeout is refreshed. The listen address and connection cap only take
// effect on restart.
func (s *Server) Reload(cfg *config.Config, newEngine func(config.EngineConfig) *pipeline.Engine) {
	s.SetEngine(newEngine(cfg.Engine))
	s.SetQueryTimeout(cfg.GetQueryTimeout())
	if cfg.Server.Addr != s.cfg.Addr || cfg.Server.MaxConnections != s.cfg.MaxConnections {
		s.log.Warn("Listener settings changed; restart to apply",
			zap.String("addr", cfg.Server.Addr),
			zap.Int("max_connections", cfg.Server.MaxConnections))
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout. ln is capped at
// MaxConnections concurrent connections when that is positive.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("Listening", zap.String("addr", ln.Addr().String()), zap.Int("max_connections", s.cfg.MaxConnections))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.log.Info("Shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timer := logging.StartTimer(s.log, r.Method+" "+r.URL.Path)
		next.ServeHTTP(ww, r)
		timer.Stop(
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()))
	})
}
