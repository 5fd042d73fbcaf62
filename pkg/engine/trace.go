package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/relayai/relay-oss/pkg/domain"
)

// traceBuffer assigns sequence numbers at dispatch time and flushes
// completed records to the sink strictly in dispatch order, so trace output
// is deterministic even when module completion order is not.
type traceBuffer struct {
	mu      sync.Mutex
	sink    domain.TraceSink
	records []domain.TraceRecord
	done    []bool
	next    int
}

func newTraceBuffer(sink domain.TraceSink) *traceBuffer {
	return &traceBuffer{sink: sink}
}

// add registers a record at dispatch time and returns its sequence number.
func (b *traceBuffer) add(rec domain.TraceRecord) int {
	if b.sink == nil {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec.Seq = len(b.records)
	b.records = append(b.records, rec)
	b.done = append(b.done, false)
	return rec.Seq
}

// complete fills in the completion half of a record and flushes every
// record whose predecessors have all completed.
func (b *traceBuffer) complete(seq int, output string, duration time.Duration, err error) {
	if b.sink == nil || seq < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[seq].Output = output
	b.records[seq].Duration = duration
	if err != nil {
		b.records[seq].Err = err.Error()
	}
	b.done[seq] = true
	for b.next < len(b.records) && b.done[b.next] {
		b.sink.Emit(b.records[b.next])
		b.next++
	}
}

// SlogSink writes trace records to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging at info level.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit implements domain.TraceSink.
func (s *SlogSink) Emit(rec domain.TraceRecord) {
	args := []any{
		"seq", rec.Seq,
		"pipeline_id", rec.PipelineID,
		"run_id", rec.RunID,
		"module_id", rec.ModuleID,
		"inputs", rec.Inputs,
		"output", rec.Output,
		"duration_ms", rec.Duration.Milliseconds(),
	}
	if rec.ChoiceIndex != nil {
		args = append(args, "choice_index", *rec.ChoiceIndex, "rationale", rec.Rationale)
	}
	if rec.Err != "" {
		args = append(args, "error", rec.Err)
		s.logger.Error("module trace", args...)
		return
	}
	s.logger.Info("module trace", args...)
}

// MemorySink collects trace records in memory for inspection, primarily in
// tests and the validate CLI.
type MemorySink struct {
	mu      sync.Mutex
	records []domain.TraceRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Emit implements domain.TraceSink.
func (m *MemorySink) Emit(rec domain.TraceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of the collected records in emission order.
func (m *MemorySink) Records() []domain.TraceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TraceRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Reset discards collected records.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}
