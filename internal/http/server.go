package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"chistes/app/internal/combined"
	"chistes/app/internal/deadline"
	"chistes/app/internal/jokes"
	"chistes/app/internal/metrics"
	"chistes/app/internal/providers"
)

// Combiner produces the combined jokes response.
type Combiner interface {
	Combine(ctx context.Context) (combined.Result, error)
}

// Options configures the HTTP server wiring.
type Options struct {
	Jokes       jokes.Service
	Combined    Combiner
	Providers   []providers.Provider
	Database    *gorm.DB
	Metrics     *metrics.Registry
	Policy      deadline.Policy
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	RateLimiter RateLimiterSettings
	// Development exposes internal error messages in responses.
	Development bool
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the JSON API over Huma on a stdlib ServeMux.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	jokes       jokes.Service
	combined    Combiner
	providers   []providers.Provider
	db          *gorm.DB
	metrics     *metrics.Registry
	policy      deadline.Policy
	logger      *logrus.Logger
	sentry      *sentry.Hub
	rateLimiter *RateLimiter
	development bool
	now         func() time.Time
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Jokes == nil {
		return nil, eris.New("jokes service is required")
	}
	if opts.Combined == nil {
		return nil, eris.New("combined service is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}

	installErrorModel()

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Chistes API", "1.0.0")
	config.Info.Description = "Chistes locales, proveedores externos y operaciones matemáticas."
	// The schema link transformer re-encodes registered body types through a
	// reflected copy, which bypasses apiError.MarshalJSON.
	config.CreateHooks = nil

	api := humago.New(mux, config)

	srv := &Server{
		api:         api,
		mux:         mux,
		jokes:       opts.Jokes,
		combined:    opts.Combined,
		providers:   opts.Providers,
		db:          opts.Database,
		metrics:     opts.Metrics,
		policy:      opts.Policy.WithDefaults(),
		logger:      opts.Logger,
		sentry:      opts.SentryHub,
		development: opts.Development,
		now:         time.Now,
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.metricsMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.registerJokeRoutes()
	s.registerCombinedRoute()
	s.registerMathRoutes()
	s.registerReportRoute()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
