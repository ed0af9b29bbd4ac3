// Package sse provides Server-Sent Events support for streaming
// clustering progress to clients.
package sse

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Phase identifies a stage of a clustering run.
type Phase string

const (
	PhaseSeeding    Phase = "seeding"
	PhaseIterating  Phase = "iterating"
	PhaseFinalizing Phase = "finalizing"
)

// IterationEvent is sent once per iteration with the current global best.
// Metrics that are not finite are omitted.
type IterationEvent struct {
	Iteration     int      `json:"iteration"`
	MaxIterations int      `json:"max_iterations"`
	Progress      float64  `json:"progress"`
	BestFitness   *float64 `json:"best_fitness,omitempty"`
	Intra         *float64 `json:"intra_distance,omitempty"`
	Inter         *float64 `json:"inter_distance,omitempty"`
	EmptyClusters int      `json:"empty_clusters"`
}

// CompleteEvent is sent when the run finishes.
type CompleteEvent struct {
	Result json.RawMessage `json:"result"`
	Stats  json.RawMessage `json:"stats"`
}

// ErrorEvent is sent when the run fails.
type ErrorEvent struct {
	Error string `json:"error"`
	Phase Phase  `json:"phase,omitempty"`
}

// Finite returns a pointer to f, or nil when f is NaN or infinite, which
// encoding/json cannot represent.
func Finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Writer wraps an http.ResponseWriter for SSE output.
// It sets the required headers and provides methods to send typed events.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for SSE streaming.
// Returns nil if the ResponseWriter does not support flushing.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}
}

// SendIteration emits an iteration event.
func (s *Writer) SendIteration(evt IterationEvent) error {
	if evt.MaxIterations > 0 {
		evt.Progress = float64(evt.Iteration) / float64(evt.MaxIterations)
	}
	return s.sendEvent("iteration", evt)
}

// SendComplete emits the final complete event with the result and stats.
func (s *Writer) SendComplete(result interface{}, stats interface{}) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	evt := CompleteEvent{
		Result: json.RawMessage(resultJSON),
		Stats:  json.RawMessage(statsJSON),
	}
	return s.sendEvent("complete", evt)
}

// SendError emits an error event.
func (s *Writer) SendError(phase Phase, errMsg string) error {
	evt := ErrorEvent{Error: errMsg, Phase: phase}
	return s.sendEvent("error", evt)
}

// sendEvent writes a single SSE event and flushes.
func (s *Writer) sendEvent(eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// RunTimer tracks elapsed time for a clustering run.
type RunTimer struct {
	started time.Time
}

// NewRunTimer starts timing.
func NewRunTimer() *RunTimer {
	return &RunTimer{started: time.Now()}
}

// Elapsed returns the duration since the timer started.
func (t *RunTimer) Elapsed() time.Duration {
	return time.Since(t.started)
}

// ElapsedMs returns elapsed milliseconds.
func (t *RunTimer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}
