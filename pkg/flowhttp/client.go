package flowhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/noop"
)

// ClientOption configures NewTransport.
type ClientOption func(*transport)

// WithBase sets the underlying round tripper. Default: http.DefaultTransport.
func WithBase(base http.RoundTripper) ClientOption {
	return func(t *transport) {
		t.base = base
	}
}

// WithClientMetrics records request counts and latency.
func WithClientMetrics(metrics observability.Metrics) ClientOption {
	return func(t *transport) {
		t.metrics = metrics
	}
}

// WithClientRetry retries network errors and 502/503/504 answers up to
// maxRetries times with exponential backoff. Requests whose body cannot be
// replayed are sent once.
func WithClientRetry(maxRetries int, initial time.Duration) ClientOption {
	return func(t *transport) {
		t.maxRetries = maxRetries
		t.initialInterval = initial
	}
}

type transport struct {
	base            http.RoundTripper
	tracer          observability.Tracer
	metrics         observability.Metrics
	maxRetries      int
	initialInterval time.Duration

	requests observability.Counter
	errors   observability.Counter
	latency  observability.Histogram
}

// NewTransport wraps outbound requests in client units opened through tracer,
// usually an engine's Tracer so each request becomes a flow named
// "HTTP METHOD host".
func NewTransport(tracer observability.Tracer, opts ...ClientOption) http.RoundTripper {
	t := &transport{base: http.DefaultTransport, tracer: tracer, initialInterval: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = noop.NewProvider().Metrics()
	}
	t.requests = t.metrics.Counter("http_client_requests_total", "Outbound HTTP requests", "{request}")
	t.errors = t.metrics.Counter("http_client_errors_total", "Outbound HTTP requests that failed", "{error}")
	t.latency = t.metrics.Histogram("http_client_request_duration_seconds", "Outbound HTTP request duration", "s")
	return t
}

// NewClient returns an http.Client using NewTransport.
func NewClient(tracer observability.Tracer, timeout time.Duration, opts ...ClientOption) *http.Client {
	return &http.Client{Transport: NewTransport(tracer, opts...), Timeout: timeout}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx, span := t.tracer.Start(req.Context(), fmt.Sprintf("HTTP %s %s", req.Method, req.URL.Host),
		observability.WithSpanKind(observability.SpanKindClient),
		observability.WithAttributes(
			observability.String("http.request.method", req.Method),
			observability.String("url.full", req.URL.String()),
			observability.String("server.address", req.URL.Host),
		),
	)
	defer span.End()

	resp, err := t.send(ctx, req.WithContext(ctx), span)

	// Metrics outlive a canceled request context.
	metricsCtx := context.Background()
	labels := []observability.Field{
		observability.String("method", req.Method),
		observability.String("host", req.URL.Host),
	}
	t.requests.Increment(metricsCtx, labels...)
	t.latency.Record(metricsCtx, time.Since(start).Seconds(), labels...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(observability.StatusCodeError, err.Error())
		t.errors.Increment(metricsCtx, append(labels, observability.String("error_type", classifyError(err)))...)
		return resp, err
	}

	span.SetAttributes(observability.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(observability.StatusCodeError, fmt.Sprintf("HTTP %d", resp.StatusCode))
	} else {
		span.SetStatus(observability.StatusCodeOK, "")
	}
	return resp, nil
}

func (t *transport) send(ctx context.Context, req *http.Request, span observability.Span) (*http.Response, error) {
	if t.maxRetries <= 0 || (req.Body != nil && req.GetBody == nil) {
		return t.base.RoundTrip(req)
	}

	var resp *http.Response
	attempt := 0
	operation := func() error {
		attempt++
		try := req
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			try = req.Clone(ctx)
			try.Body = body
		}

		r, err := t.base.RoundTrip(try)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if retryableStatus(r.StatusCode) {
			resp = r
			return fmt.Errorf("HTTP %d", r.StatusCode)
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		drain(resp)
		resp = nil
		span.AddEvent("retry_attempt",
			observability.Int("attempt", attempt),
			observability.String("reason", err.Error()),
		)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.initialInterval
	policy.MaxElapsedTime = 0
	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(t.maxRetries)), ctx), notify)
	if resp != nil {
		// The last answer is returned even when its status was retryable.
		return resp, nil
	}
	return nil, err
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}
	return "unknown"
}
