package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/sphinxql/pkg/httputil"
	"github.com/platinummonkey/sphinxql/pkg/observability"
)

// RouteRegistrar is implemented by every handler group
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Server is the HTTP front end of the search service
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// Option configures a Server
type Option func(*serverOptions)

type serverOptions struct {
	logger   *logrus.Logger
	extra    []RouteRegistrar
	registry *prometheus.Registry
	metrics  *observability.Metrics
	inner    []func(http.Handler) http.Handler
}

// WithLogger sets the request logger
func WithLogger(logger *logrus.Logger) Option {
	return func(o *serverOptions) { o.logger = logger }
}

// WithRoutes mounts additional handler groups, such as CacheHandlers
func WithRoutes(groups ...RouteRegistrar) Option {
	return func(o *serverOptions) { o.extra = append(o.extra, groups...) }
}

// WithMetrics instruments requests and serves registry on /metrics
func WithMetrics(registry *prometheus.Registry, metrics *observability.Metrics) Option {
	return func(o *serverOptions) {
		o.registry = registry
		o.metrics = metrics
	}
}

// WithMiddleware adds middleware that runs after request logging, closest to
// the routes. Rate limiting is mounted this way.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(o *serverOptions) { o.inner = append(o.inner, mw...) }
}

// NewServer builds the router. checker may be nil, in which case the health
// routes are not mounted.
func NewServer(search *SearchHandlers, checker *observability.HealthChecker, opts ...Option) *Server {
	o := serverOptions{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	router := mux.NewRouter()
	search.RegisterRoutes(router)
	for _, g := range o.extra {
		g.RegisterRoutes(router)
	}

	if checker != nil {
		router.HandleFunc("/health", checker.Readiness).Methods("GET")
		router.HandleFunc("/health/live", checker.Liveness).Methods("GET")
		router.HandleFunc("/health/ready", checker.Readiness).Methods("GET")
	}
	if o.registry != nil {
		router.Handle("/metrics", observability.MetricsHandler(o.registry)).Methods("GET")
	}

	middleware := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(o.logger),
		httputil.LoggingMiddleware(o.logger),
	}
	middleware = append(middleware, o.inner...)
	if o.metrics != nil {
		middleware = append([]func(http.Handler) http.Handler{observability.HTTPMetricsMiddleware(o.metrics)}, middleware...)
	}

	return &Server{
		router:  router,
		handler: otelhttp.NewHandler(httputil.Chain(middleware...)(router), "sphinxql-api"),
	}
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
