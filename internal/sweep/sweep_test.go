package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/abraxas0001/Caption-Master-Pro/internal/bus"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
)

// runQueuedTasks executes n tasks from the bus, the way the engine loop
// would. Sweep publishes synchronously, so n is known to the caller.
func runQueuedTasks(t *testing.T, events *bus.EventBus, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		ev, err := events.Consume(ctx)
		if err != nil {
			t.Fatalf("expected %d queued tasks, got %d: %v", n, i, err)
		}
		if ev.Type != bus.EventTask {
			t.Fatalf("unexpected event type %q on bus", ev.Type)
		}
		ev.Task()
	}
}

func TestSweepResetsIdleBatches(t *testing.T) {
	convs := conv.NewStore("")
	events := bus.NewEventBus(16)
	s, err := New("@every 10m", time.Hour, convs, events)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stale := convs.GetOrCreate(1)
	stale.AppendItem(conv.MediaItem{Kind: conv.KindPhoto, FileID: "p0"})
	stale.SetReplacement("http://old", "http://new")
	stale.LastActivity = time.Now().Add(-2 * time.Hour)
	staleSeq := stale.BatchSeq

	fresh := convs.GetOrCreate(2)
	fresh.AppendItem(conv.MediaItem{Kind: conv.KindPhoto, FileID: "p1"})

	s.Sweep()
	runQueuedTasks(t, events, 2)

	if len(stale.Items) != 0 {
		t.Errorf("expected stale batch reset, %d items remain", len(stale.Items))
	}
	if stale.BatchSeq == staleSeq {
		t.Error("expected batch sequence bump on sweep reset")
	}
	if len(stale.Replacements) != 1 {
		t.Error("sweep must not touch the replacement table")
	}
	if len(fresh.Items) != 1 {
		t.Error("expected fresh batch untouched")
	}
}

func TestSweepIgnoresIdleConversationsWithoutBatch(t *testing.T) {
	convs := conv.NewStore("")
	events := bus.NewEventBus(16)
	s, err := New("@every 10m", time.Hour, convs, events)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	idle := convs.GetOrCreate(3)
	idle.LastActivity = time.Now().Add(-3 * time.Hour)
	seq := idle.BatchSeq

	s.Sweep()
	runQueuedTasks(t, events, 1)

	if idle.BatchSeq != seq {
		t.Error("expected no reset for a conversation with no batch or dialog")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	if _, err := New("not a schedule", time.Hour, conv.NewStore(""), bus.NewEventBus(1)); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
