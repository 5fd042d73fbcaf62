package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/relayai/relay-oss/pkg/domain"
)

func TestTraceBuffer_FlushesInDispatchOrder(t *testing.T) {
	sink := NewMemorySink()
	buffer := newTraceBuffer(sink)

	seqs := make([]int, 3)
	for i, id := range []string{"a", "b", "c"} {
		seqs[i] = buffer.add(domain.TraceRecord{ModuleID: id})
	}

	// Completion out of order: nothing flushes until the head completes.
	buffer.complete(seqs[2], "c-out", time.Millisecond, nil)
	buffer.complete(seqs[1], "b-out", time.Millisecond, nil)
	if got := len(sink.Records()); got != 0 {
		t.Fatalf("expected no flush before head completion, got %d records", got)
	}

	buffer.complete(seqs[0], "a-out", time.Millisecond, nil)
	records := sink.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i].ModuleID != want {
			t.Fatalf("record %d: expected %s, got %s", i, want, records[i].ModuleID)
		}
		if records[i].Seq != i {
			t.Fatalf("record %d: expected seq %d, got %d", i, i, records[i].Seq)
		}
	}
}

func TestTraceBuffer_RecordsError(t *testing.T) {
	sink := NewMemorySink()
	buffer := newTraceBuffer(sink)
	seq := buffer.add(domain.TraceRecord{ModuleID: "flaky"})
	buffer.complete(seq, "", time.Millisecond, errors.New("boom"))

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Err != "boom" {
		t.Fatalf("expected error captured, got %q", records[0].Err)
	}
}

func TestTraceBuffer_NilSinkIsNoop(t *testing.T) {
	buffer := newTraceBuffer(nil)
	if seq := buffer.add(domain.TraceRecord{ModuleID: "a"}); seq != -1 {
		t.Fatalf("expected sentinel seq for nil sink, got %d", seq)
	}
	// Must not panic.
	buffer.complete(-1, "", 0, nil)
}
