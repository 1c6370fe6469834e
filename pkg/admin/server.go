// Package admin serves the operational HTTP endpoints of a taskexec
// process: Prometheus metrics, pool statistics and health probes.
package admin

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fluxorio/taskexec/pkg/core"
	"github.com/fluxorio/taskexec/pkg/core/concurrency"
	metrics "github.com/fluxorio/taskexec/pkg/observability/prometheus"
)

// Config configures the admin server
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       core.Logger
	Gatherer     prometheus.Gatherer // default metrics.DefaultRegistry
	Metrics      *metrics.Metrics    // optional request counters
}

// Server is a fasthttp server exposing /metrics, /stats, /live and /ready.
type Server struct {
	addr     string
	server   *fasthttp.Server
	logger   core.Logger
	metrics  *metrics.Metrics
	scrape   fasthttp.RequestHandler
	pools    []concurrency.Executor
	ready    atomic.Bool
	draining atomic.Bool
}

// New creates the server. It reports ready once SetReady(true) is called.
func New(cfg Config, pools ...concurrency.Executor) *Server {
	if cfg.Logger == nil {
		cfg.Logger = core.NewDefaultLogger()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = metrics.DefaultRegistry
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		addr:    cfg.Addr,
		logger:  cfg.Logger.Named("admin"),
		metrics: cfg.Metrics,
		scrape:  fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})),
		pools:   pools,
	}
	s.server = &fasthttp.Server{
		Handler:               s.Handler,
		Name:                  "taskexec-admin",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		NoDefaultServerHeader: true,
		CloseOnShutdown:       true,
	}
	return s
}

// SetReady flips the readiness probe.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// ListenAndServe serves on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("listening on %s", s.addr)
	return s.server.ListenAndServe(s.addr)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Infof("listening on %s", ln.Addr())
	return s.server.Serve(ln)
}

// Shutdown marks the server not ready and stops it gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	return s.server.ShutdownWithContext(ctx)
}

// Handler routes admin requests.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	if !ctx.IsGet() && !ctx.IsHead() {
		writeJSON(ctx, fasthttp.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed"})
	} else {
		switch path {
		case "/metrics":
			s.scrape(ctx)
		case "/stats":
			s.handleStats(ctx)
		case "/live":
			writeJSON(ctx, fasthttp.StatusOK, statusBody{Status: "ok"})
		case "/ready":
			s.handleReady(ctx)
		default:
			path = "other"
			writeJSON(ctx, fasthttp.StatusNotFound, errorBody{Error: "not_found"})
		}
	}
	if s.metrics != nil {
		s.metrics.RecordAdminRequest(path, ctx.Response.StatusCode())
	}
}

type statusBody struct {
	Status string   `json:"status"`
	Pools  []string `json:"pools,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleStats(ctx *fasthttp.RequestCtx) {
	name := string(ctx.QueryArgs().Peek("pool"))
	if name == "" {
		all := make([]concurrency.Stats, 0, len(s.pools))
		for _, p := range s.pools {
			all = append(all, p.Stats())
		}
		writeJSON(ctx, fasthttp.StatusOK, all)
		return
	}
	for _, p := range s.pools {
		if p.Name() == name {
			writeJSON(ctx, fasthttp.StatusOK, p.Stats())
			return
		}
	}
	writeJSON(ctx, fasthttp.StatusNotFound, errorBody{Error: "unknown_pool"})
}

// handleReady reports 503 until SetReady(true), during shutdown, and while
// any pool is not running.
func (s *Server) handleReady(ctx *fasthttp.RequestCtx) {
	if !s.ready.Load() || s.draining.Load() {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, statusBody{Status: "not_ready"})
		return
	}
	var stopped []string
	for _, p := range s.pools {
		if st := p.Stats(); st.State != concurrency.PoolRunning.String() {
			stopped = append(stopped, st.Name)
		}
	}
	if len(stopped) > 0 {
		writeJSON(ctx, fasthttp.StatusServiceUnavailable, statusBody{Status: "pool_stopped", Pools: stopped})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, statusBody{Status: "ready"})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}
