// Package http exposes the report service as a JSON API for the dashboard.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cdc/internal/core"
	"cdc/internal/log"
	"cdc/internal/middleware/ratelimit"
	"cdc/internal/middleware/security"
	"cdc/internal/middleware/trace"
	"cdc/internal/services"
)

// DefaultMaxUploadBytes caps snapshot uploads.
const DefaultMaxUploadBytes = 32 << 20

// ReportAPI is the service surface the handlers call.
type ReportAPI interface {
	Upload(ctx context.Context, date, filename string, content []byte) error
	Delete(ctx context.Context, date string) error
	Dates(ctx context.Context) ([]string, error)
	Analyze(ctx context.Context, oldDate, newDate string) (*core.Report, error)
	CachedReport(ctx context.Context, oldDate, newDate string) (*core.Report, error)
	MonthlyStats(ctx context.Context, year, month int) ([]services.DailyImpact, error)
	Ask(ctx context.Context, question string, contextData any) string
	SheetsEnabled() bool
	ImportSheet(ctx context.Context, date, rangeA1 string) error
}

// ServerOptions tunes the middleware stack and request limits.
type ServerOptions struct {
	MaxUploadBytes int64
	RateLimit      ratelimit.Config
	CORS           security.CORSConfig
	Headers        security.HeadersConfig
	// Ready reports whether dependencies are usable; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

// DefaultServerOptions returns the production defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		MaxUploadBytes: DefaultMaxUploadBytes,
		RateLimit:      ratelimit.DefaultConfig(),
		CORS:           security.DefaultCORSConfig(),
		Headers:        security.DefaultHeadersConfig(),
	}
}

type Server struct {
	http.Server
	svc            ReportAPI
	ready          func(ctx context.Context) error
	maxUploadBytes int64
	logger         *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc ReportAPI, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		svc:            svc,
		ready:          opts.Ready,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger,
		limiter:        ratelimit.NewLimiter(opts.RateLimit, opts.Logger),
		detector:       security.NewDetector(opts.Logger),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/dates", s.handleDates)
	mux.HandleFunc("DELETE /api/delete/{date}", s.handleDelete)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("POST /api/ask-report", s.handleAsk)
	mux.HandleFunc("GET /api/stats/monthly", s.handleMonthlyStats)
	mux.HandleFunc("POST /api/import-sheet", s.handleImportSheet)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited,
		http.MethodPost, http.MethodDelete)

	// Outermost first: tracing sees every request, CORS answers preflights
	// before the mux can reject OPTIONS.
	var handler http.Handler = mux
	handler = limited(handler)
	handler = security.CORS(opts.CORS)(handler)
	handler = security.NewHeadersMiddleware(opts.Headers).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Analysis of large workbooks and LLM answers can take a while
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Status(http.StatusTooManyRequests).
		Body(errorBody{Detail: "Rate limit exceeded. Please try again later."}).
		Write(w)
}
