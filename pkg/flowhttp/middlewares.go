package flowhttp

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/JailtonJunior94/devkit-flow/pkg/flow"
	"github.com/JailtonJunior94/devkit-flow/pkg/observability"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyRequestID holds the request id set by RequestID.
const ContextKeyRequestID ContextKey = "request-id"

// RequestID stamps every request with a UUIDv7, echoed in X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := generateRequestID()
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// GetRequestID returns the request id in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(ContextKeyRequestID).(string)
	return requestID
}

// Recovery turns a panic into a 500 and logs it. Flows opened below it have
// already been closed with the panic as failure.
func Recovery(logger observability.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error(r.Context(), "panic recovered",
					observability.String("request_id", GetRequestID(r.Context())),
					observability.Any("panic", rec),
				)
				w.WriteHeader(http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.status = http.StatusOK
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}

// flowHandler runs route as a server flow named "METHOD path". A returned
// error is the flow's failure; a 5xx without error marks the status ERROR.
func (s *server) flowHandler(route Route) http.Handler {
	name := route.Method + " " + route.Path
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		opts := flow.Options{
			Name:       name,
			MethodKind: flow.KindOf(observability.SpanKindServer),
			Attributes: []observability.Field{
				observability.String("http.request.method", req.Method),
				observability.String("http.route", route.Path),
				observability.String("url.path", req.URL.Path),
			},
		}

		_ = s.engine.WithFlow(req.Context(), opts, func(ctx context.Context) error {
			if id := GetRequestID(ctx); id != "" {
				flow.SetAttribute(ctx, "http.request_id", id)
			}

			err := route.Handler(sw, req.WithContext(ctx))
			if err != nil {
				s.errorHandler(ctx, sw, err)
			}

			flow.SetAttribute(ctx, "http.response.status_code", sw.status)
			if err == nil && sw.status >= http.StatusInternalServerError {
				flow.SetStatus(ctx, observability.StatusCodeError, http.StatusText(sw.status))
			}
			return err
		})
	})
}
