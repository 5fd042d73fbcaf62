package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// PreviewLimit caps the length of input/output previews in trace records.
const PreviewLimit = 120

// TraceRecord describes one module invocation during a pipeline run. Records
// are emitted in execution order, which is deterministic for identical
// inputs: concurrently dispatched modules are ordered by declaration order
// among the ready set.
type TraceRecord struct {
	Seq        int
	PipelineID string
	RunID      string
	ModuleID   string
	Inputs     map[string]string
	Output     string
	Duration   time.Duration
	Err        string

	// Routing decision fields, set only on records emitted by a router.
	ChoiceIndex *int
	Rationale   string
}

// TraceSink receives trace records from executors and routers. Emit is
// called sequentially per pipeline run; implementations shared across runs
// must be safe for concurrent use.
type TraceSink interface {
	Emit(rec TraceRecord)
}

// Preview renders a stable, truncated preview of a value for trace records.
func Preview(v any) string {
	s := fmt.Sprintf("%v", v)
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > PreviewLimit {
		return s[:PreviewLimit] + "..."
	}
	return s
}

// PreviewInputs renders previews for a resolved input mapping.
func PreviewInputs(inputs map[string]any) map[string]string {
	out := make(map[string]string, len(inputs))
	for name, v := range inputs {
		out[name] = Preview(v)
	}
	return out
}

// PreviewOutputs renders a single stable preview line for an output mapping.
// Keys are sorted so the preview is identical across runs.
func PreviewOutputs(outputs map[string]any) string {
	if len(outputs) == 0 {
		return ""
	}
	if v, ok := outputs[DefaultOutput]; ok && len(outputs) == 1 {
		return Preview(v)
	}
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+Preview(outputs[name]))
	}
	return strings.Join(parts, " ")
}
