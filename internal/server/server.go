// Package server exposes the dispatcher over HTTP: a single dispatch
// endpoint plus health and metrics. Transport-level failures (bad JSON,
// oversized bodies) are reported in the same envelope as dispatch
// errors so clients parse one shape.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/opsgate/internal/dispatch"
	"github.com/flemzord/opsgate/internal/operation"
)

// Config wires a Server.
type Config struct {
	ListenAddr   string
	MaxBodyBytes int64
	Dispatcher   *dispatch.Dispatcher
	Logger       *slog.Logger

	// Registry defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP transport.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	httpSrv *http.Server
}

// New constructs the server and registers its metrics.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the chi mux with all routes wired.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Post("/v1/dispatch", s.handleDispatch)

	return r
}

// Start begins serving and blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.logger.Info("http transport listening", "addr", s.cfg.ListenAddr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req dispatch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp := errorResponse("", operation.Errorf(operation.CodeInvalidRequest,
			"request body is not a valid dispatch request: %v", err))
		s.write(w, resp)
		s.metrics.Record("invalid", dispatch.StatusError, resp.ErrorCode, time.Since(start))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Operation == "" {
		resp := errorResponse(req.ID, operation.NewError(operation.CodeInvalidRequest,
			"operation field is required"))
		s.write(w, resp)
		s.metrics.Record("invalid", dispatch.StatusError, resp.ErrorCode, time.Since(start))
		return
	}

	resp := s.cfg.Dispatcher.Dispatch(r.Context(), req)
	s.write(w, resp)
	s.metrics.Record(req.Operation, resp.Status, resp.ErrorCode, time.Since(start))
}

func errorResponse(id string, err *operation.Error) dispatch.Response {
	return dispatch.Response{
		ID:        id,
		Status:    dispatch.StatusError,
		ErrorCode: int(err.Code),
		Message:   err.Message,
		Details:   err.Details,
	}
}

func (s *Server) write(w http.ResponseWriter, resp dispatch.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(resp))
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// httpStatus maps the error taxonomy onto HTTP status codes. The body's
// error_code remains the authoritative signal; the status is a
// convenience for plain HTTP clients.
func httpStatus(resp dispatch.Response) int {
	if resp.Status == dispatch.StatusSuccess {
		return http.StatusOK
	}
	switch operation.Code(resp.ErrorCode) {
	case operation.CodeOperationNotFound, operation.CodeResourceNotFound:
		return http.StatusNotFound
	case operation.CodeInvalidRequest, operation.CodeInvalidArguments, operation.CodeValidation:
		return http.StatusBadRequest
	case operation.CodePermissionDenied, operation.CodeOSPermissionDenied:
		return http.StatusForbidden
	case operation.CodeResourceExists, operation.CodeInvalidState:
		return http.StatusConflict
	case operation.CodeResourceBusy:
		return http.StatusServiceUnavailable
	case operation.CodeTimeout:
		return http.StatusGatewayTimeout
	case operation.CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
