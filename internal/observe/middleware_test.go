package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup creates both metrics and tracing infrastructure for middleware
// tests. It swaps the global tracer provider, so these tests do not run in
// parallel.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

// routed wraps a mux that serves pattern with handler, behind the middleware.
func routed(m *Metrics, pattern string, handler http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	return Middleware(m)(mux)
}

func TestMiddleware_SetsCorrelationID(t *testing.T) {
	m, _, _ := testSetup(t)

	var captured string
	h := routed(m, "GET /playback", func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playback", nil))

	if len(captured) != 32 {
		t.Fatalf("correlation ID %q, want 32 hex characters", captured)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != captured {
		t.Errorf("X-Correlation-ID = %q, want %q", got, captured)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _, _ := testSetup(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var captured string
	h := routed(m, "GET /playback", func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/playback", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if captured != traceID {
		t.Errorf("correlation ID = %q, want incoming trace %q", captured, traceID)
	}
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	m, _, exp := testSetup(t)

	h := routed(m, "GET /clips/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clips/abc", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if want := "HTTP GET /clips/{id}"; spans[0].Name != want {
		t.Errorf("span name = %q, want %q", spans[0].Name, want)
	}
	var status int64
	for _, kv := range spans[0].Attributes {
		if kv.Key == "http.response.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	if status != http.StatusNotFound {
		t.Errorf("status attribute = %d, want 404", status)
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	m, reader, _ := testSetup(t)

	h := routed(m, "DELETE /clips/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/clips/one", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/clips/two", nil))

	rm := collect(t, reader)
	met := findMetric(rm, "voxline.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric is %T, want histogram", met.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("got %d data points, want 1 (both requests share a route)", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 2 {
		t.Errorf("count = %d, want 2", dp.Count)
	}
	if v, ok := dp.Attributes.Value("route"); !ok || v.AsString() != "DELETE /clips/{id}" {
		t.Errorf("route attribute = %v, want DELETE /clips/{id}", v.AsString())
	}
}

func TestMiddleware_Unmatched(t *testing.T) {
	m, reader, _ := testSetup(t)

	h := routed(m, "GET /playback", func(http.ResponseWriter, *http.Request) {})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rm := collect(t, reader)
	hist := findMetric(rm, "voxline.http.request.duration").Data.(metricdata.Histogram[float64])
	if v, _ := hist.DataPoints[0].Attributes.Value("route"); v.AsString() != "unmatched" {
		t.Errorf("route = %q, want unmatched", v.AsString())
	}
}

func TestStatusRecorder_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}
	sr.Flush()
	if !rec.Flushed {
		t.Error("Flush was not passed through")
	}
	if sr.Unwrap() != rec {
		t.Error("Unwrap did not return the wrapped writer")
	}
	if _, _, err := sr.Hijack(); err == nil {
		t.Error("Hijack on a recorder returned nil error")
	}
}
