// Package engine is the bot's core: it batches incoming media per
// conversation, debounces completion, runs the caption-mode dialog, and
// drives the checkpointed delivery pipeline. All handlers execute on one
// event loop, so conversation state is never touched concurrently.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/abraxas0001/Caption-Master-Pro/internal/bus"
	"github.com/abraxas0001/Caption-Master-Pro/internal/caption"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
	"github.com/abraxas0001/Caption-Master-Pro/internal/sched"
)

// DoneToken is the reply-keyboard text that completes a batch.
const DoneToken = "✅ Done"

// Options tunes the batching and delivery behavior.
type Options struct {
	// QuietInterval is the debounce window after the last media arrival.
	QuietInterval time.Duration
	// ItemChunkSize bounds per-item delivery chunks.
	ItemChunkSize int
	// GroupChunkSize bounds grouped sends (platform ceiling is 10).
	GroupChunkSize int
	// GroupThreshold is the batch size above which non-filename modes
	// switch to grouped delivery.
	GroupThreshold int
	// RetryCap bounds the rate-limit backoff.
	RetryCap time.Duration
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		QuietInterval:  2 * time.Second,
		ItemChunkSize:  6,
		GroupChunkSize: 10,
		GroupThreshold: 12,
		RetryCap:       10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QuietInterval <= 0 {
		o.QuietInterval = d.QuietInterval
	}
	if o.ItemChunkSize <= 0 {
		o.ItemChunkSize = d.ItemChunkSize
	}
	if o.GroupChunkSize <= 0 || o.GroupChunkSize > d.GroupChunkSize {
		o.GroupChunkSize = d.GroupChunkSize
	}
	if o.GroupThreshold <= 0 {
		o.GroupThreshold = d.GroupThreshold
	}
	if o.RetryCap <= 0 {
		o.RetryCap = d.RetryCap
	}
	return o
}

// Engine consumes inbound events and mutates conversation state.
type Engine struct {
	bus       *bus.EventBus
	sched     sched.Scheduler
	convs     *conv.Store
	transport Transport
	chain     *caption.Chain
	opts      Options
}

// Config holds all dependencies and settings for an Engine.
type Config struct {
	Bus       *bus.EventBus
	Scheduler sched.Scheduler
	Store     *conv.Store
	Transport Transport
	Chain     *caption.Chain
	Options   Options
}

func New(cfg Config) *Engine {
	return &Engine{
		bus:       cfg.Bus,
		sched:     cfg.Scheduler,
		convs:     cfg.Store,
		transport: cfg.Transport,
		chain:     cfg.Chain,
		opts:      cfg.Options.withDefaults(),
	}
}

// Run consumes events from the bus until ctx is cancelled. Events are
// handled strictly one at a time; this is the serialization guarantee the
// rest of the engine relies on.
func (e *Engine) Run(ctx context.Context) error {
	for {
		ev, err := e.bus.Consume(ctx)
		if err != nil {
			return err
		}
		e.Handle(ctx, ev)
	}
}

// Handle dispatches one event. Exported so tests can drive the engine
// synchronously without the loop.
func (e *Engine) Handle(ctx context.Context, ev bus.Event) {
	switch ev.Type {
	case bus.EventMedia:
		if ev.Media != nil {
			e.handleMedia(ctx, ev.ChatID, *ev.Media)
		}
	case bus.EventText:
		e.handleText(ctx, ev.ChatID, ev.Text)
	case bus.EventSelection:
		e.handleSelection(ctx, ev.ChatID, caption.Mode(ev.Mode))
	case bus.EventCommand:
		e.handleCommand(ctx, ev.ChatID, ev.Command, ev.Args)
	case bus.EventTask:
		if ev.Task != nil {
			ev.Task()
		}
	default:
		slog.Warn("unknown event type", "type", ev.Type)
	}
}

// handleMedia appends the item to the conversation's batch and re-arms the
// debounce timer (last arrival wins).
func (e *Engine) handleMedia(ctx context.Context, chatID int64, item conv.MediaItem) {
	st := e.convs.GetOrCreate(chatID)
	st.AppendItem(item)
	e.armTimer(ctx, st)
}

// armTimer cancels any pending debounce timer and schedules a fresh one.
func (e *Engine) armTimer(ctx context.Context, st *conv.State) {
	if st.Timer != nil {
		st.Timer()
	}
	chatID, seq := st.ID, st.BatchSeq
	st.Timer = conv.CancelTimer(e.sched.Schedule(e.opts.QuietInterval, func() {
		e.timerFired(ctx, chatID, seq)
	}))
}

// timerFired runs when the quiet interval elapses. The batch may have been
// cleared between arming and firing; that race is tolerated silently.
func (e *Engine) timerFired(ctx context.Context, chatID int64, seq uint64) {
	st, ok := e.convs.Lookup(chatID)
	if !ok || st.BatchSeq != seq || len(st.Items) == 0 {
		return
	}
	st.Timer = nil

	err := e.transport.PromptDone(ctx, chatID, len(st.Items))
	if rl, ok := AsRateLimit(err); ok {
		st.Timer = conv.CancelTimer(e.sched.Schedule(capDelay(rl.RetryAfter, e.opts.RetryCap), func() {
			e.timerFired(ctx, chatID, seq)
		}))
		return
	}
	if err != nil {
		slog.Error("failed to send done prompt", "chat", chatID, "err", err)
	}
}

// completeBatch is the explicit completion signal: the Done token or /done.
func (e *Engine) completeBatch(ctx context.Context, chatID int64) {
	st, ok := e.convs.Lookup(chatID)
	if !ok || len(st.Items) == 0 {
		e.notify(ctx, chatID, msgNoMedia)
		return
	}
	if st.Timer != nil {
		st.Timer()
		st.Timer = nil
	}

	chatID, seq := st.ID, st.BatchSeq
	err := e.transport.PromptMode(ctx, chatID, len(st.Items))
	if rl, ok := AsRateLimit(err); ok {
		e.sched.Schedule(capDelay(rl.RetryAfter, e.opts.RetryCap), func() {
			if cur, ok := e.convs.Lookup(chatID); ok && cur.BatchSeq == seq && len(cur.Items) > 0 {
				e.completeBatch(ctx, chatID)
			}
		})
		return
	}
	if err != nil {
		slog.Error("failed to send mode prompt", "chat", chatID, "err", err)
	}
}

// notify sends a plain notice, best effort.
func (e *Engine) notify(ctx context.Context, chatID int64, text string) {
	if err := e.transport.SendText(ctx, chatID, text); err != nil {
		slog.Error("failed to send notice", "chat", chatID, "err", err)
	}
}

// capDelay bounds a platform-advised wait to keep checkpoints from going
// stale; a missing advice falls back to one second.
func capDelay(d, cap time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	if d > cap {
		return cap
	}
	return d
}
