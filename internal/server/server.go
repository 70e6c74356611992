package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ArthurVardevanyan/poe-shim/internal/metrics"
	"github.com/ArthurVardevanyan/poe-shim/internal/power"
	"github.com/ArthurVardevanyan/poe-shim/internal/version"
)

// SystemIDHeader carries the provisioner's machine ID on every power request.
const SystemIDHeader = "system_id"

type Config struct {
	Listen   string
	Username string
	Password string
	Power    *power.Service
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

type Server struct {
	cfg    Config
	http   *http.Server
	logger *zap.Logger
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.Named("server"),
	}
	s.http = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.loggingMiddleware(s.authMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	mux.HandleFunc("GET /power-status", s.handlePowerStatus)
	mux.HandleFunc("POST /power-on", s.handlePowerOn)
	mux.HandleFunc("POST /power-off", s.handlePowerOff)
	mux.HandleFunc("GET /livez", s.handleLivez)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	return s
}

// Handler exposes the fully wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Start() error {
	s.logger.Info("poe-shim listening", zap.String("addr", s.cfg.Listen), zap.String("version", version.Short()))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.http.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.cfg.Metrics.ObserveHTTP(routeLabel(r), strconv.Itoa(rec.status))
		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.RequestURI()),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("x_forwarded_for", r.Header.Get("X-Forwarded-For")),
			zap.String("system_id", r.Header.Get(SystemIDHeader)),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// routeLabel is the mux pattern that served r, so label values stay bounded
// to the registered routes. The mux sets r.Pattern while dispatching.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health, version and metrics stay open for probes and scrapers.
		switch r.URL.Path {
		case "/livez", "/readyz", "/version", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		if s.cfg.Username == "" && s.cfg.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		usr, pwd, ok := r.BasicAuth()
		if !ok || !credentialsMatch(usr, pwd, s.cfg.Username, s.cfg.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="poe-shim"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func credentialsMatch(usr, pwd, wantUsr, wantPwd string) bool {
	u := subtle.ConstantTimeCompare([]byte(usr), []byte(wantUsr))
	p := subtle.ConstantTimeCompare([]byte(pwd), []byte(wantPwd))
	return u&p == 1
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders a classified failure as {"error": message}.
func writeError(w http.ResponseWriter, err error) {
	pe := power.Translate(err)
	writeJSON(w, statusFor(pe.Kind), map[string]string{"error": pe.Message})
}

func statusFor(kind power.Kind) int {
	switch kind {
	case power.KindMissingSystemID:
		return http.StatusBadRequest
	case power.KindFailedToConstructURL:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// requestContext detaches the controller call from the client connection:
// a caller hanging up does not abort a port change half way.
func requestContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handlePowerStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.cfg.Power.PowerStatus(requestContext(r), r.Header.Get(SystemIDHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePowerOn(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Power.PowerOn(requestContext(r), r.Header.Get(SystemIDHeader)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePowerOff(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Power.PowerOff(requestContext(r), r.Header.Get(SystemIDHeader)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLivez(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Power.Ready(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		http.Error(w, "controller unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Map())
}
