package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ interface {
	graphql.HandlerExtension
	graphql.ResponseInterceptor
	graphql.FieldInterceptor
} = (*Tracer)(nil)

// Tracer is a gqlgen handler extension that records operations and resolver latency.
type Tracer struct {
	gatherer   prometheus.Gatherer
	operations *prometheus.CounterVec
	resolvers  *prometheus.HistogramVec
}

func New(reg *prometheus.Registry) (*Tracer, error) {
	t := &Tracer{
		gatherer: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookshelf",
			Subsystem: "graphql",
			Name:      "operations_total",
			Help:      "Number of executed GraphQL operations.",
		}, []string{"operation", "status"}),
		resolvers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookshelf",
			Subsystem: "graphql",
			Name:      "resolver_duration_seconds",
			Help:      "Time spent in field resolvers.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"field"}),
	}

	for _, c := range []prometheus.Collector{t.operations, t.resolvers} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Tracer) ExtensionName() string {
	return "PrometheusTracer"
}

func (t *Tracer) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

func (t *Tracer) InterceptResponse(ctx context.Context, next graphql.ResponseHandler) *graphql.Response {
	resp := next(ctx)
	if !graphql.HasOperationContext(ctx) {
		return resp
	}

	oc := graphql.GetOperationContext(ctx)
	operation := oc.OperationName
	if operation == "" {
		operation = "anonymous"
	}
	status := "ok"
	if resp == nil || len(resp.Errors) != 0 {
		status = "error"
	}
	t.operations.WithLabelValues(operation, status).Inc()

	return resp
}

func (t *Tracer) InterceptField(ctx context.Context, next graphql.Resolver) (interface{}, error) {
	fc := graphql.GetFieldContext(ctx)
	if fc == nil || !fc.IsResolver {
		return next(ctx)
	}

	start := time.Now()
	res, err := next(ctx)
	t.resolvers.WithLabelValues(fc.Object + "." + fc.Field.Name).Observe(time.Since(start).Seconds())

	return res, err
}

// Handler serves the registry in the Prometheus text format.
func (t *Tracer) Handler() http.Handler {
	return promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{})
}
