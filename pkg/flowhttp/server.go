package flowhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
)

type (
	// Server is an HTTP server whose routes run as flows.
	Server interface {
		// Run starts listening and returns the graceful shutdown function.
		Run() Shutdown
		// RegisterRoute adds a route. Safe to call after Run.
		RegisterRoute(route Route)
		// ShutdownListener receives the listener's termination error, nil on clean shutdown.
		ShutdownListener() chan error
		ServeHTTP(http.ResponseWriter, *http.Request)
	}

	server struct {
		http.Server
		router           *chi.Mux
		shutdownListener chan error
		errorHandler     ErrorHandler
		engine           *flow.Engine
		logger           observability.Logger
		mu               sync.Mutex
	}

	// Shutdown gracefully stops the server.
	Shutdown func(ctx context.Context) error
	// Middleware wraps an http.Handler.
	Middleware func(handler http.Handler) http.Handler
	// Handler handles a request and may fail; errors go to the ErrorHandler
	// and are recorded as the flow's failure.
	Handler func(w http.ResponseWriter, req *http.Request) error
	// ErrorHandler writes the response for a failed Handler.
	ErrorHandler func(ctx context.Context, w http.ResponseWriter, err error)

	// Route binds a Handler to a method and chi path pattern.
	Route struct {
		Path        string
		Method      string
		Handler     Handler
		Middlewares []Middleware
	}
)

// New creates a server. Defaults: port 8080, read/write 15s, idle 60s,
// read header 5s, 1MB headers, no engine.
func New(options ...Option) Server {
	settings := defaultSettings()
	for _, option := range options {
		settings = option(settings)
	}
	if settings.o11y == nil {
		settings.o11y = noop.NewProvider()
	}
	logger := settings.o11y.Logger().With(observability.String("component", "flowhttp"))
	if settings.errorHandler == nil {
		settings.errorHandler = jsonErrorHandler(logger)
	}

	router := chi.NewRouter()
	srv := &server{
		Server: http.Server{
			Addr:              fmt.Sprintf(":%s", settings.port),
			Handler:           Middlewares(router, settings.globalMiddlewares...),
			ReadTimeout:       settings.readTimeout,
			WriteTimeout:      settings.writeTimeout,
			IdleTimeout:       settings.idleTimeout,
			ReadHeaderTimeout: settings.readHeaderTimeout,
			MaxHeaderBytes:    settings.maxHeaderBytes,
		},
		router:           router,
		shutdownListener: make(chan error, 1),
		errorHandler:     settings.errorHandler,
		engine:           settings.engine,
		logger:           logger,
	}

	for _, route := range settings.routes {
		srv.registerRoute(route)
	}
	return srv
}

func (s *server) ShutdownListener() chan error {
	return s.shutdownListener
}

func (s *server) Run() Shutdown {
	go func() {
		err := s.Server.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			s.shutdownListener <- nil
			return
		}
		s.shutdownListener <- err
	}()
	return s.Server.Shutdown
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.Server.Handler.ServeHTTP(w, req)
}

// NewRoute creates a Route.
func NewRoute(method, path string, handler Handler, middlewares ...Middleware) Route {
	return Route{
		Path:        path,
		Method:      method,
		Handler:     handler,
		Middlewares: middlewares,
	}
}

// MetricsRoute exposes gatherer in the prometheus text format at GET path.
func MetricsRoute(path string, gatherer prometheus.Gatherer) Route {
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return NewRoute(http.MethodGet, path, func(w http.ResponseWriter, req *http.Request) error {
		h.ServeHTTP(w, req)
		return nil
	})
}

// Middlewares wraps main so the first middleware is the outermost.
func Middlewares(main http.Handler, middlewares ...Middleware) http.Handler {
	handler := main
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

func (s *server) RegisterRoute(route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerRoute(route)
}

func (s *server) registerRoute(route Route) {
	var handler http.Handler
	if s.engine != nil {
		handler = s.flowHandler(route)
	} else {
		handler = s.plainHandler(route.Handler)
	}
	s.router.Method(route.Method, route.Path, Middlewares(handler, route.Middlewares...))
}

func (s *server) plainHandler(handler Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := handler(w, req); err != nil {
			s.errorHandler(req.Context(), w, err)
		}
	})
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// jsonErrorHandler logs err and answers 500 with a JSON body carrying the
// request and trace ids.
func jsonErrorHandler(logger observability.Logger) ErrorHandler {
	return func(ctx context.Context, w http.ResponseWriter, err error) {
		logger.Error(ctx, "http handler failed",
			observability.String("request_id", GetRequestID(ctx)),
			observability.Error(err),
		)

		body := errorResponse{Error: http.StatusText(http.StatusInternalServerError), RequestID: GetRequestID(ctx)}
		if rec, ok := flow.CurrentRecord(ctx); ok {
			body.TraceID = rec.TraceID()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// GetShutdownTimeout returns a context bounded by the default shutdown timeout.
func GetShutdownTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultShutdownTimeout)
}
