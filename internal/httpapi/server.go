package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/skill-translator/internal/cache"
	"github.com/MimeLyc/skill-translator/internal/metrics"
	"github.com/MimeLyc/skill-translator/internal/service"
)

// Pipeline is the translation service the server exposes.
type Pipeline interface {
	Translate(ctx context.Context, doc service.Document, opts service.Options) (*service.Result, error)
	TranslateBatch(ctx context.Context, items []service.BatchItem, skipCached bool, opts service.Options) service.BatchResponse
	Stats(ctx context.Context) (cache.Stats, error)
	Purge(ctx context.Context, expiredOnly bool) (int64, error)
	CacheConnected(ctx context.Context) bool
}

const defaultMaxBodyBytes = 32 << 20

type Server struct {
	pipeline Pipeline
	metrics  *metrics.Metrics

	version            string
	bearer             string
	providerConfigured bool
	maxBodyBytes       int64

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithBearer requires "Authorization: Bearer <token>" on the API routes.
// An empty token leaves them open.
func WithBearer(token string) Option {
	return func(s *Server) {
		s.bearer = token
	}
}

func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithProviderConfigured sets what the health endpoint reports.
func WithProviderConfigured(ok bool) Option {
	return func(s *Server) {
		s.providerConfigured = ok
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

func NewServer(pipeline Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:     pipeline,
		version:      "dev",
		maxBodyBytes: defaultMaxBodyBytes,
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withRequestLog(s.mux)
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/translate", s.requireAuth(s.handleTranslate))
	s.mux.HandleFunc("/api/translate/batch", s.requireAuth(s.handleTranslateBatch))
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/cache/stats", s.requireAuth(s.handleCacheStats))
	s.mux.HandleFunc("/api/cache", s.requireAuth(s.handleCacheClear))
	s.mux.HandleFunc("/api/cache/expired", s.requireAuth(s.handleCacheClearExpired))
	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.HandleFunc("/", s.handleRoot)
}
