package metrics

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Fatal("registry is nil")
	}
}

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("/v1/cluster", 200, 50*time.Millisecond)
	m.RecordRequest("/v1/cluster", 200, 100*time.Millisecond)
	m.RecordRequest("/v1/cluster", 400, 5*time.Millisecond)

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/cluster", "status", "200")
	if val != 2 {
		t.Errorf("expected 2 requests with status 200, got %f", val)
	}

	val = counterValue(t, m.RequestsTotal, "endpoint", "/v1/cluster", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestRecordIteration(t *testing.T) {
	m := New()
	m.RecordIteration(2.5, 10)
	m.RecordIteration(1.25, 10)

	if v := plainValue(t, m.IterationsTotal); v != 2 {
		t.Errorf("expected 2 iterations, got %f", v)
	}
	if v := plainValue(t, m.EvaluationsTotal); v != 20 {
		t.Errorf("expected 20 evaluations, got %f", v)
	}
	if v := gaugeValue(t, m.BestFitness); v != 1.25 {
		t.Errorf("expected best fitness 1.25, got %f", v)
	}

	// Non-finite fitness keeps the last finite value.
	m.RecordIteration(math.Inf(1), 10)
	if v := gaugeValue(t, m.BestFitness); v != 1.25 {
		t.Errorf("expected best fitness to stay 1.25, got %f", v)
	}
}

func TestRecordEmptyClusters(t *testing.T) {
	m := New()
	m.RecordEmptyClusters(0)
	m.RecordEmptyClusters(2)

	if v := plainValue(t, m.EmptyClustersTotal); v != 2 {
		t.Errorf("expected 2 empty clusters, got %f", v)
	}
}

func TestRecordRun(t *testing.T) {
	m := New()
	m.RecordRun("ok", 20*time.Millisecond)
	m.RecordRun("error", time.Millisecond)

	if v := counterValue(t, m.RunsTotal, "status", "ok"); v != 1 {
		t.Errorf("expected 1 ok run, got %f", v)
	}
	if v := counterValue(t, m.RunsTotal, "status", "error"); v != 1 {
		t.Errorf("expected 1 error run, got %f", v)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	m := New()
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(true)

	if v := counterValue(t, m.CacheLookupsTotal, "result", "hit"); v != 2 {
		t.Errorf("expected 2 hits, got %f", v)
	}
	if v := counterValue(t, m.CacheLookupsTotal, "result", "miss"); v != 1 {
		t.Errorf("expected 1 miss, got %f", v)
	}
}

func TestMiddleware(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/cluster", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/cluster", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/cluster", "status", "200")
	if val != 1 {
		t.Errorf("expected 1 request recorded, got %f", val)
	}
}

func TestMiddleware_ErrorStatus(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/cluster", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/cluster", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/cluster", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestMiddleware_Flusher(t *testing.T) {
	m := New()

	var flushable bool
	handler := m.Middleware("/v1/cluster/stream", func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/cluster/stream", nil))
	if !flushable {
		t.Error("wrapped writer should implement http.Flusher")
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordRequest("/v1/cluster", 200, 10*time.Millisecond)
	m.RecordRun("ok", 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, name := range []string{
		"swarmcluster_requests_total",
		"swarmcluster_request_duration_seconds",
		"swarmcluster_runs_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestActiveRequests(t *testing.T) {
	m := New()

	started := make(chan struct{})
	release := make(chan struct{})

	handler := m.Middleware("/v1/cluster", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/cluster", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}()

	<-started

	if v := gaugeValue(t, m.ActiveRequests); v != 1 {
		t.Errorf("expected 1 active request, got %f", v)
	}

	close(release)
}

// counterValue extracts the value of a counter with the given label pairs.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labelPairs ...string) float64 {
	t.Helper()
	labels := prometheus.Labels{}
	for i := 0; i < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	counter, err := cv.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	return plainValue(t, counter)
}

func plainValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return metric.GetGauge().GetValue()
}
