package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/roundtable-rtc/engine/internal/domain"
)

type fakeSink struct {
	events []Event
	failOn uint64
}

func (f *fakeSink) Append(_ context.Context, ev Event) error {
	if f.failOn != 0 && ev.Seq == f.failOn {
		return errors.New("sink write failed")
	}
	f.events = append(f.events, ev)
	return nil
}

func TestAppendAssignsMonotonicSeq(t *testing.T) {
	l := New(nil)
	ctx := context.Background()

	ev1, err := l.Append(ctx, 1, "PROPOSE", "a1", TypeAgentReady, "", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	ev2, err := l.Append(ctx, 1, "PROPOSE", "a2", TypeAgentReady, "", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if ev1.Seq != 1 || ev2.Seq != 2 {
		t.Fatalf("expected seq 1, 2; got %d, %d", ev1.Seq, ev2.Seq)
	}
}

func TestAppendRejectedAfterClose(t *testing.T) {
	l := New(nil)
	ctx := context.Background()
	l.Close()

	if _, err := l.Append(ctx, 1, "FINALIZE", "", TypeFinalize, "", nil); !errors.Is(err, domain.ErrLedgerClosed) {
		t.Fatalf("expected ErrLedgerClosed, got %v", err)
	}
}

func TestAppendFansOutToSink(t *testing.T) {
	sink := &fakeSink{}
	l := New(sink)
	ctx := context.Background()

	if _, err := l.Append(ctx, 1, "PROPOSE", "a1", TypeAgentReady, "", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 event in sink, got %d", len(sink.events))
	}
}

func TestAppendPropagatesSinkError(t *testing.T) {
	sink := &fakeSink{failOn: 1}
	l := New(sink)
	ctx := context.Background()

	if _, err := l.Append(ctx, 1, "PROPOSE", "a1", TypeAgentReady, "", nil); err == nil {
		t.Fatal("expected sink error to propagate")
	}
}

func TestRangeFiltersBySeq(t *testing.T) {
	l := New(nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := l.Append(ctx, uint64(i), "PROPOSE", "a1", TypeAgentReady, "", nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got := l.Range(2, 4)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Seq != 2 || got[2].Seq != 4 {
		t.Fatalf("unexpected range bounds: %+v", got)
	}
}

func TestRangeToZeroMeansLatest(t *testing.T) {
	l := New(nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := l.Append(ctx, uint64(i), "PROPOSE", "a1", TypeAgentReady, "", nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got := l.Range(1, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
}
