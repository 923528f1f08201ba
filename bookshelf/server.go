package bookshelf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vvakame/bookshelf/internal/config"
	"github.com/vvakame/bookshelf/internal/graph"
	"github.com/vvakame/bookshelf/internal/log"
	"github.com/vvakame/bookshelf/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg              *config.Config
	executableSchema graphql.ExecutableSchema
	mux              *http.ServeMux
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	es, err := graph.NewExecutableSchema(graph.Config{
		Resolvers: graph.NewResolver(),
	})
	if err != nil {
		log.FromContext(ctx).Error(err, "failed to load schema")
		return nil, err
	}

	tracer, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	srv := handler.NewDefaultServer(es)
	if !cfg.Introspection {
		srv.Use(disableIntrospection{})
	}
	if cfg.ComplexityLimit > 0 {
		srv.Use(extension.FixedComplexityLimit(cfg.ComplexityLimit))
	}
	srv.Use(tracer)

	mux := http.NewServeMux()
	if cfg.Playground {
		mux.Handle("/", playground.Handler("bookshelf", cfg.QueryPath))
	}
	mux.Handle(cfg.QueryPath, srv)
	mux.Handle("/metrics", tracer.Handler())
	mux.HandleFunc("/health", healthHandler)

	return &Server{
		cfg:              cfg,
		executableSchema: es,
		mux:              mux,
	}, nil
}

// ExecutableSchema is the schema served by Handler, for running requests without HTTP.
func (s *Server) ExecutableSchema() graphql.ExecutableSchema {
	return s.executableSchema
}

// Handler returns the HTTP handler; requests carry the logger found in ctx.
func (s *Server) Handler(ctx context.Context) http.Handler {
	return log.Middleware(log.FromContext(ctx), s.mux)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := log.FromContext(ctx)

	server := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleClosed := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		idleClosed <- server.Shutdown(shutdownCtx)
	}()

	logger.Info("server ready", "url", s.URL(ln.Addr()))

	err := server.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-idleClosed
}

// URL is the address a client on this machine uses to reach the server.
func (s *Server) URL(addr net.Addr) string {
	port := s.cfg.Port
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprint(tcpAddr.Port)
	}
	return fmt.Sprintf("http://localhost:%s/", port)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

var _ interface {
	graphql.HandlerExtension
	graphql.OperationContextMutator
} = disableIntrospection{}

// disableIntrospection runs after extension.Introspection and turns it back off.
type disableIntrospection struct{}

func (disableIntrospection) ExtensionName() string {
	return "DisableIntrospection"
}

func (disableIntrospection) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

func (disableIntrospection) MutateOperationContext(ctx context.Context, oc *graphql.OperationContext) *gqlerror.Error {
	oc.DisableIntrospection = true
	return nil
}
