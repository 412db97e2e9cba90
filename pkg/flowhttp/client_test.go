package flowhttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability/fake"
)

func newClientEngine(t *testing.T) (*flow.Engine, *captured) {
	t.Helper()
	rec := &captured{}
	engine, err := flow.New(nil, flow.WithServiceID("orders"), flow.WithReceiver(rec))
	require.NoError(t, err)
	return engine, rec
}

func TestClient_RequestIsClientFlow(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	engine, rec := newClientEngine(t)
	metrics := fake.NewFakeMetrics()
	client := NewClient(engine.Tracer(), time.Second, WithClientMetrics(metrics))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, upstream.URL+"/payments", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	got := rec.only(t)
	host := strings.TrimPrefix(upstream.URL, "http://")
	assert.Equal(t, "HTTP GET "+host, got.Name())
	assert.Equal(t, observability.SpanKindClient, got.Kind())
	assert.Equal(t, http.StatusOK, attr(t, got, "http.response.status_code"))
	status, ok := got.Status()
	require.True(t, ok)
	assert.Equal(t, observability.StatusCodeOK, status.Code)
	assert.Equal(t, int64(1), metrics.GetCounter("http_client_requests_total").Total())
}

func TestClient_NestsUnderServerFlow(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	engine, rec := newClientEngine(t)
	client := NewClient(engine.Tracer(), time.Second)

	err := engine.WithFlow(context.Background(), flow.Options{Name: "orders.create"}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.URL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	})
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.records, 2)
	child, parent := rec.records[0], rec.records[1]
	assert.Equal(t, parent.SpanID(), child.ParentSpanID())
	assert.Equal(t, parent.TraceID(), child.TraceID())
	status, _ := child.Status()
	assert.Equal(t, observability.StatusCodeError, status.Code)
	assert.Equal(t, "HTTP 404", status.Message)
}

func TestClient_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"amount":10}`, string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	engine, rec := newClientEngine(t)
	client := NewClient(engine.Tracer(), time.Second, WithClientRetry(3, time.Millisecond))

	resp, err := client.Post(upstream.URL, "application/json", strings.NewReader(`{"amount":10}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	events := rec.only(t).Events()
	require.Len(t, events, 2)
	assert.Equal(t, "retry_attempt", events[0].Name)
}

func TestClient_RetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	engine, _ := newClientEngine(t)
	client := NewClient(engine.Tracer(), time.Second, WithClientRetry(2, time.Millisecond))

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NetworkError(t *testing.T) {
	engine, rec := newClientEngine(t)
	metrics := fake.NewFakeMetrics()
	client := NewClient(engine.Tracer(), time.Second, WithClientMetrics(metrics))

	_, err := client.Get("http://127.0.0.1:1/unreachable")
	require.Error(t, err)

	got := rec.only(t)
	status, ok := got.Status()
	require.True(t, ok)
	assert.Equal(t, observability.StatusCodeError, status.Code)
	assert.Equal(t, int64(1), metrics.GetCounter("http_client_errors_total").Total())
}
