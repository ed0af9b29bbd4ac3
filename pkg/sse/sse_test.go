package sse

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)
	if sw == nil {
		t.Fatal("expected non-nil Writer from httptest.ResponseRecorder")
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if conn := rec.Header().Get("Connection"); conn != "keep-alive" {
		t.Errorf("Connection = %q, want keep-alive", conn)
	}
}

// nonFlushWriter does not implement http.Flusher.
type nonFlushWriter struct {
	http.ResponseWriter
}

func TestNewWriter_NoFlusher(t *testing.T) {
	sw := NewWriter(&nonFlushWriter{})
	if sw != nil {
		t.Error("expected nil Writer when ResponseWriter does not support Flusher")
	}
}

func TestSendIteration(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	err := sw.SendIteration(IterationEvent{
		Iteration:     5,
		MaxIterations: 20,
		BestFitness:   Finite(0.75),
		Intra:         Finite(0.75),
		Inter:         Finite(14.1),
		EmptyClusters: 1,
	})
	if err != nil {
		t.Fatalf("SendIteration: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: iteration") {
		t.Error("missing 'event: iteration' line")
	}

	data := extractData(t, body, "iteration")
	var evt IterationEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		t.Fatalf("unmarshal iteration event: %v", err)
	}
	if evt.Iteration != 5 || evt.MaxIterations != 20 {
		t.Errorf("unexpected iteration %d/%d", evt.Iteration, evt.MaxIterations)
	}
	if evt.Progress != 0.25 {
		t.Errorf("progress = %v, want 0.25", evt.Progress)
	}
	if evt.BestFitness == nil || *evt.BestFitness != 0.75 {
		t.Errorf("best fitness = %v, want 0.75", evt.BestFitness)
	}
	if evt.EmptyClusters != 1 {
		t.Errorf("empty clusters = %d, want 1", evt.EmptyClusters)
	}
}

func TestSendIteration_NonFiniteFitness(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	if err := sw.SendIteration(IterationEvent{MaxIterations: 10, BestFitness: Finite(math.Inf(1))}); err != nil {
		t.Fatalf("SendIteration: %v", err)
	}

	data := extractData(t, rec.Body.String(), "iteration")
	if strings.Contains(data, "best_fitness") {
		t.Errorf("non-finite fitness should be omitted: %s", data)
	}
}

func TestFinite(t *testing.T) {
	if Finite(math.NaN()) != nil {
		t.Error("NaN should map to nil")
	}
	if Finite(math.Inf(-1)) != nil {
		t.Error("-Inf should map to nil")
	}
	if v := Finite(2.5); v == nil || *v != 2.5 {
		t.Errorf("Finite(2.5) = %v", v)
	}
}

func TestSendComplete(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	result := map[string][]int{"assignments": {0, 0, 1}}
	stats := map[string]int{"iterations": 20}

	if err := sw.SendComplete(result, stats); err != nil {
		t.Fatalf("SendComplete: %v", err)
	}

	data := extractData(t, rec.Body.String(), "complete")
	var evt CompleteEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var parsed map[string][]int
	if err := json.Unmarshal(evt.Result, &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(parsed["assignments"]) != 3 || parsed["assignments"][2] != 1 {
		t.Errorf("unexpected result: %v", parsed)
	}
}

func TestSendComplete_Unmarshalable(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	if err := sw.SendComplete(math.Inf(1), nil); err == nil {
		t.Error("expected marshal error for +Inf result")
	}
}

func TestSendError(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	if err := sw.SendError(PhaseSeeding, "invalid configuration"); err != nil {
		t.Fatalf("SendError: %v", err)
	}

	data := extractData(t, rec.Body.String(), "error")
	var evt ErrorEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.Error != "invalid configuration" {
		t.Errorf("error = %q, want %q", evt.Error, "invalid configuration")
	}
	if evt.Phase != PhaseSeeding {
		t.Errorf("phase = %q, want %q", evt.Phase, PhaseSeeding)
	}
}

func TestMultipleEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	for i := 0; i <= 3; i++ {
		_ = sw.SendIteration(IterationEvent{Iteration: i, MaxIterations: 3})
	}
	_ = sw.SendComplete(map[string]int{}, map[string]int{})

	body := rec.Body.String()
	if n := strings.Count(body, "event: iteration"); n != 4 {
		t.Errorf("iteration events = %d, want 4", n)
	}
	if n := strings.Count(body, "event: complete"); n != 1 {
		t.Errorf("complete events = %d, want 1", n)
	}
	if strings.Index(body, "event: complete") < strings.LastIndex(body, "event: iteration") {
		t.Error("complete must follow every iteration event")
	}
}

func TestRunTimer(t *testing.T) {
	timer := NewRunTimer()
	time.Sleep(10 * time.Millisecond)

	if timer.Elapsed() < 10*time.Millisecond {
		t.Errorf("elapsed = %v, expected >= 10ms", timer.Elapsed())
	}
	if timer.ElapsedMs() < 10 {
		t.Errorf("elapsed ms = %d, expected >= 10", timer.ElapsedMs())
	}
}

// extractData finds the data line for the first occurrence of the given event type.
func extractData(t *testing.T, body, eventType string) string {
	t.Helper()
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if line == "event: "+eventType {
			if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "data: ") {
				return strings.TrimPrefix(lines[i+1], "data: ")
			}
		}
	}
	t.Fatalf("no data found for event type %q in:\n%s", eventType, body)
	return ""
}
