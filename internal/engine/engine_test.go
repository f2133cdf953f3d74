package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/abraxas0001/Caption-Master-Pro/internal/bus"
	"github.com/abraxas0001/Caption-Master-Pro/internal/caption"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
	"github.com/abraxas0001/Caption-Master-Pro/internal/sched"
)

// manualSched collects scheduled tasks so tests fire them deterministically.
type manualSched struct {
	tasks []*manualTask
}

type manualTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
	done      bool
}

func (m *manualSched) Schedule(d time.Duration, fn func()) sched.CancelFunc {
	task := &manualTask{delay: d, fn: fn}
	m.tasks = append(m.tasks, task)
	return func() bool {
		if task.cancelled || task.done {
			return false
		}
		task.cancelled = true
		return true
	}
}

// pending returns tasks not yet run or cancelled.
func (m *manualSched) pending() []*manualTask {
	var out []*manualTask
	for _, t := range m.tasks {
		if !t.cancelled && !t.done {
			out = append(out, t)
		}
	}
	return out
}

// runNext fires the oldest pending task and returns its delay.
func (m *manualSched) runNext(t *testing.T) time.Duration {
	t.Helper()
	for _, task := range m.tasks {
		if !task.cancelled && !task.done {
			task.done = true
			task.fn()
			return task.delay
		}
	}
	t.Fatal("no pending scheduled task")
	return 0
}

// drain fires pending tasks in order until none remain.
func (m *manualSched) drain() {
	for {
		fired := false
		for _, task := range m.tasks {
			if !task.cancelled && !task.done {
				task.done = true
				task.fn()
				fired = true
				break
			}
		}
		if !fired {
			return
		}
	}
}

// sendRecord is one observed transport call.
type sendRecord struct {
	op       string // "item", "group", "text", "done", "mode"
	chatID   int64
	item     conv.MediaItem
	caption  string
	group    []conv.MediaItem
	captions []string
	text     string
}

// fakeTransport records calls and can inject errors per item-send call.
type fakeTransport struct {
	sent      []sendRecord
	itemCalls int
	itemErr   func(call int, item conv.MediaItem) error
	groupErr  func(call int) error
	groupCall int
	promptErr error
}

func (f *fakeTransport) SendItem(_ context.Context, chatID int64, item conv.MediaItem, text string) error {
	f.itemCalls++
	if f.itemErr != nil {
		if err := f.itemErr(f.itemCalls, item); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sendRecord{op: "item", chatID: chatID, item: item, caption: text})
	return nil
}

func (f *fakeTransport) SendGroup(_ context.Context, chatID int64, items []conv.MediaItem, captions []string) error {
	f.groupCall++
	if f.groupErr != nil {
		if err := f.groupErr(f.groupCall); err != nil {
			return err
		}
	}
	group := make([]conv.MediaItem, len(items))
	copy(group, items)
	caps := make([]string, len(captions))
	copy(caps, captions)
	f.sent = append(f.sent, sendRecord{op: "group", chatID: chatID, group: group, captions: caps})
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, sendRecord{op: "text", chatID: chatID, text: text})
	return nil
}

func (f *fakeTransport) PromptDone(_ context.Context, chatID int64, count int) error {
	if f.promptErr != nil {
		err := f.promptErr
		f.promptErr = nil
		return err
	}
	f.sent = append(f.sent, sendRecord{op: "done", chatID: chatID})
	return nil
}

func (f *fakeTransport) PromptMode(_ context.Context, chatID int64, count int) error {
	f.sent = append(f.sent, sendRecord{op: "mode", chatID: chatID})
	return nil
}

func (f *fakeTransport) ops(op string) []sendRecord {
	var out []sendRecord
	for _, r := range f.sent {
		if r.op == op {
			out = append(out, r)
		}
	}
	return out
}

func newTestEngine(opts Options) (*Engine, *manualSched, *fakeTransport, *conv.Store) {
	ms := &manualSched{}
	ft := &fakeTransport{}
	store := conv.NewStore("")
	e := New(Config{
		Bus:       bus.NewEventBus(16),
		Scheduler: ms,
		Store:     store,
		Transport: ft,
		Chain:     caption.NewChain(nil),
		Options:   opts,
	})
	return e, ms, ft, store
}

func mediaEvent(chatID int64, item conv.MediaItem) bus.Event {
	return bus.Event{Type: bus.EventMedia, ChatID: chatID, Media: &item}
}

func photos(n int) []conv.MediaItem {
	items := make([]conv.MediaItem, n)
	for i := range items {
		items[i] = conv.MediaItem{
			Kind: conv.KindPhoto, FileID: fmt.Sprintf("photo%02d", i), Caption: fmt.Sprintf("cap%02d", i),
		}
	}
	return items
}

func videos(n int) []conv.MediaItem {
	items := make([]conv.MediaItem, n)
	for i := range items {
		items[i] = conv.MediaItem{
			Kind: conv.KindVideo, FileID: fmt.Sprintf("vid%02d", i),
			Caption: fmt.Sprintf("cap%02d", i), FileName: fmt.Sprintf("clip%02d.mp4", i),
		}
	}
	return items
}

func ingest(e *Engine, chatID int64, items []conv.MediaItem) {
	for _, item := range items {
		e.Handle(context.Background(), mediaEvent(chatID, item))
	}
}

func TestDebounceDoubleArmSingleFire(t *testing.T) {
	e, ms, ft, _ := newTestEngine(Options{})
	ctx := context.Background()

	e.Handle(ctx, mediaEvent(1, conv.MediaItem{Kind: conv.KindPhoto, FileID: "a"}))
	e.Handle(ctx, mediaEvent(1, conv.MediaItem{Kind: conv.KindPhoto, FileID: "b"}))

	if got := len(ms.pending()); got != 1 {
		t.Fatalf("expected exactly 1 pending timer after re-arm, got %d", got)
	}
	ms.drain()

	if got := len(ft.ops("done")); got != 1 {
		t.Fatalf("expected exactly one done prompt, got %d", got)
	}
}

func TestTimerFireAfterClearIsSilent(t *testing.T) {
	e, ms, ft, st := newTestEngine(Options{})
	ctx := context.Background()

	e.Handle(ctx, mediaEvent(1, conv.MediaItem{Kind: conv.KindPhoto, FileID: "a"}))

	// simulate the batch being cleared between arming and firing: the
	// cancel races, so the task still runs
	state, _ := st.Lookup(1)
	state.Items = nil
	state.BatchSeq++

	ms.drain()
	if got := len(ft.ops("done")); got != 0 {
		t.Fatalf("expected no prompt after cleared batch, got %d", got)
	}
}

func TestDonePromptRateLimitedReschedules(t *testing.T) {
	e, ms, ft, _ := newTestEngine(Options{})
	ctx := context.Background()

	ft.promptErr = &RateLimitError{RetryAfter: 3 * time.Second}
	e.Handle(ctx, mediaEvent(1, conv.MediaItem{Kind: conv.KindPhoto, FileID: "a"}))

	delay := ms.runNext(t) // debounce fire, prompt rate-limited
	if delay != 2*time.Second {
		t.Fatalf("expected default quiet interval 2s, got %s", delay)
	}
	delay = ms.runNext(t) // rescheduled prompt
	if delay != 3*time.Second {
		t.Fatalf("expected advised 3s backoff, got %s", delay)
	}
	if got := len(ft.ops("done")); got != 1 {
		t.Fatalf("expected one eventual done prompt, got %d", got)
	}
}

func TestDoneTokenPromptsModeSelection(t *testing.T) {
	e, _, ft, _ := newTestEngine(Options{})
	ctx := context.Background()

	ingest(e, 1, photos(3))
	e.Handle(ctx, bus.Event{Type: bus.EventText, ChatID: 1, Text: DoneToken})

	if got := len(ft.ops("mode")); got != 1 {
		t.Fatalf("expected mode prompt after Done, got %d", got)
	}
}

func TestDoneWithEmptyStoreRejected(t *testing.T) {
	e, _, ft, _ := newTestEngine(Options{})
	ctx := context.Background()

	e.Handle(ctx, bus.Event{Type: bus.EventText, ChatID: 1, Text: DoneToken})

	texts := ft.ops("text")
	if len(texts) != 1 || texts[0].text != msgNoMedia {
		t.Fatalf("expected rejection notice, got %+v", texts)
	}
}

func TestIdleFreeTextIgnored(t *testing.T) {
	e, _, ft, _ := newTestEngine(Options{})
	ctx := context.Background()

	ingest(e, 1, photos(2))
	e.Handle(ctx, bus.Event{Type: bus.EventText, ChatID: 1, Text: "just chatting"})

	if got := len(ft.sent); got != 0 {
		t.Fatalf("expected idle text to be ignored, got %d sends", got)
	}
}

func TestModeSelectionEmptyStoreRejected(t *testing.T) {
	e, _, ft, st := newTestEngine(Options{})
	ctx := context.Background()

	e.Handle(ctx, bus.Event{Type: bus.EventSelection, ChatID: 1, Mode: "new"})

	texts := ft.ops("text")
	if len(texts) != 1 || texts[0].text != msgNoMedia {
		t.Fatalf("expected rejection notice, got %+v", texts)
	}
	if state, ok := st.Lookup(1); ok && state.Dialog != nil {
		t.Fatal("expected no dialog transition on empty store")
	}
}

func TestImmediateModeDispatches(t *testing.T) {
	e, ms, ft, st := newTestEngine(Options{})
	ctx := context.Background()

	ingest(e, 1, photos(2))
	e.Handle(ctx, bus.Event{Type: bus.EventSelection, ChatID: 1, Mode: "keep"})
	ms.drain()

	items := ft.ops("item")
	if len(items) != 2 {
		t.Fatalf("expected 2 item sends, got %d", len(items))
	}
	if items[0].caption != "cap00" || items[1].caption != "cap01" {
		t.Errorf("keep mode must preserve original captions: %+v", items)
	}
	state, _ := st.Lookup(1)
	if len(state.Items) != 0 || state.Dialog != nil {
		t.Error("expected batch and dialog cleared after delivery")
	}
}

func TestSingleInputModeDialog(t *testing.T) {
	e, ms, ft, _ := newTestEngine(Options{})
	ctx := context.Background()

	ingest(e, 1, photos(1))
	e.Handle(ctx, bus.Event{Type: bus.EventSelection, ChatID: 1, Mode: "append"})
	if got := len(ft.ops("item")); got != 0 {
		t.Fatal("append must wait for input before dispatching")
	}

	e.Handle(ctx, bus.Event{Type: bus.EventText, ChatID: 1, Text: "tail"})
	ms.drain()

	items := ft.ops("item")
	if len(items) != 1 || items[0].caption != "cap00\ntail" {
		t.Fatalf("unexpected delivery: %+v", items)
	}
}

func TestReplaceLinksTwoStepDialog(t *testing.T) {
	e, ms, ft, st := newTestEngine(Options{})
	ctx := context.Background()

	ingest(e, 1, []conv.MediaItem{
		{Kind: conv.KindPhoto, FileID: "p", Caption: "see http://old and http://old again"},
	})

	e.Handle(ctx, bus.Event{Type: bus.EventSelection, ChatID: 1, Mode: "replace_links"})
	state, _ := st.Lookup(1)
	if state.Dialog == nil || state.Dialog.Step != conv.StepAwaitingFirst {
		t.Fatalf("expected awaiting-first dialog, got %+v", state.Dialog)
	}

	e.Handle(ctx, bus.Event{Type: bus.EventText, ChatID: 1, Text: "http://old"})
	if state.Dialog == nil || state.Dialog.Step != conv.StepAwaitingSecond {
		t.Fatalf("expected awaiting-second dialog, got %+v", state.Dialog)
	}
	if got := len(ft.ops("item")); got != 0 {
		t.Fatal("must not dispatch before the second value")
	}

	e.Handle(ctx, bus.Event{Type: bus.EventText, ChatID: 1, Text: "http://new"})
	ms.drain()

	items := ft.ops("item")
	if len(items) != 1 {
		t.Fatalf("expected 1 item send, got %d", len(items))
	}
	want := "see http://new and http://new again"
	if items[0].caption != want {
		t.Errorf("got caption %q, want %q", items[0].caption, want)
	}
}

func TestTextDuringDeliveryIgnored(t *testing.T) {
	e, _, ft, st := newTestEngine(Options{})
	ctx := context.Background()

	ingest(e, 1, photos(8)) // more than one chunk, delivery stays in flight
	e.Handle(ctx, bus.Event{Type: bus.EventSelection, ChatID: 1, Mode: "keep"})

	before := len(ft.sent)
	e.Handle(ctx, bus.Event{Type: bus.EventText, ChatID: 1, Text: "stray"})
	if len(ft.sent) != before {
		t.Fatal("expected text during delivery to be ignored")
	}
	state, _ := st.Lookup(1)
	if state.Dialog == nil || state.Dialog.Step != conv.StepDispatched {
		t.Fatal("expected dialog to stay in dispatched state")
	}
}

func TestClearCommandKeepsPrefs(t *testing.T) {
	e, _, _, st := newTestEngine(Options{})
	ctx := context.Background()

	e.Handle(ctx, bus.Event{Type: bus.EventCommand, ChatID: 1, Command: "replace", Args: []string{"foo", "bar"}})
	e.Handle(ctx, bus.Event{Type: bus.EventCommand, ChatID: 1, Command: "lang", Args: []string{"de"}})
	ingest(e, 1, photos(3))
	e.Handle(ctx, bus.Event{Type: bus.EventCommand, ChatID: 1, Command: "clear"})

	state, _ := st.Lookup(1)
	if len(state.Items) != 0 || state.Dialog != nil {
		t.Error("expected batch and dialog cleared")
	}
	if len(state.Replacements) != 1 || state.Language != "de" {
		t.Error("expected replacements and language to survive /clear")
	}
}

func TestReplaceCommandLastWriteWins(t *testing.T) {
	e, _, _, st := newTestEngine(Options{})
	ctx := context.Background()

	e.Handle(ctx, bus.Event{Type: bus.EventCommand, ChatID: 1, Command: "replace", Args: []string{"foo", "bar"}})
	e.Handle(ctx, bus.Event{Type: bus.EventCommand, ChatID: 1, Command: "replace", Args: []string{"foo", "baz"}})

	state, _ := st.Lookup(1)
	if len(state.Replacements) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(state.Replacements))
	}
	if state.Replacements[0].Replacement != "baz" {
		t.Errorf("expected last write to win, got %+v", state.Replacements[0])
	}
}

func TestTransientSendFailureSkipsItem(t *testing.T) {
	e, ms, ft, _ := newTestEngine(Options{})
	ctx := context.Background()

	ft.itemErr = func(call int, _ conv.MediaItem) error {
		if call == 3 {
			return errors.New("boom")
		}
		return nil
	}

	ingest(e, 1, photos(5))
	e.Handle(ctx, bus.Event{Type: bus.EventSelection, ChatID: 1, Mode: "keep"})
	ms.drain()

	items := ft.ops("item")
	if len(items) != 4 {
		t.Fatalf("expected 4 delivered items (1 skipped), got %d", len(items))
	}
	for _, r := range items {
		if r.item.FileID == "photo02" {
			t.Error("failed item must not be retried")
		}
	}
}
