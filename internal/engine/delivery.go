package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abraxas0001/Caption-Master-Pro/internal/caption"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
)

// checkpoint is the exact remaining-work snapshot of a delivery run: the
// unsent items plus the bound mode and value. Rescheduling a checkpoint
// reproduces the remaining work byte for byte.
type checkpoint struct {
	chatID  int64
	seq     uint64
	mode    caption.Mode
	value   caption.Value
	items   []conv.MediaItem
	total   int
	grouped bool
}

// deliverChunk sends one bounded slice of the checkpoint and reschedules
// the remainder. It runs on the engine loop; every suspension point is a
// scheduled continuation carrying the new checkpoint.
func (e *Engine) deliverChunk(ctx context.Context, cp checkpoint) {
	st, ok := e.convs.Lookup(cp.chatID)
	if !ok || st.BatchSeq != cp.seq || len(st.Items) == 0 {
		return // batch was reset while this continuation was pending
	}

	var (
		remaining   []conv.MediaItem
		retryAfter  time.Duration
		rateLimited bool
	)
	if cp.grouped {
		remaining, retryAfter, rateLimited = e.sendGroupStep(ctx, st, cp)
	} else {
		remaining, retryAfter, rateLimited = e.sendItemStep(ctx, st, cp)
	}

	if rateLimited {
		next := cp
		next.items = remaining
		delay := capDelay(retryAfter, e.opts.RetryCap)
		slog.Info("rate limited, pausing delivery",
			"chat", cp.chatID, "remaining", len(remaining), "resumeIn", delay)
		e.sched.Schedule(delay, func() { e.deliverChunk(ctx, next) })
		return
	}

	if len(remaining) > 0 {
		next := cp
		next.items = remaining
		e.sched.Schedule(0, func() { e.deliverChunk(ctx, next) })
		return
	}

	// batch exhausted: items and dialog clear together
	st.ClearBatch()
	e.notify(ctx, cp.chatID, fmt.Sprintf("✅ Done! Sent %d media.", cp.total))
}

// sendItemStep delivers up to ItemChunkSize items one by one. On a
// rate-limit signal it stops immediately and returns the unsent remainder,
// failed item included. Other send failures skip the single item.
func (e *Engine) sendItemStep(ctx context.Context, st *conv.State, cp checkpoint) ([]conv.MediaItem, time.Duration, bool) {
	n := e.opts.ItemChunkSize
	if n > len(cp.items) {
		n = len(cp.items)
	}

	for i := 0; i < n; i++ {
		item := cp.items[i]
		text := e.finalize(ctx, st, item, cp.mode, cp.value)
		if err := e.transport.SendItem(ctx, cp.chatID, item, text); err != nil {
			if rl, ok := AsRateLimit(err); ok {
				return cp.items[i:], rl.RetryAfter, true
			}
			slog.Error("failed to send item, skipping",
				"chat", cp.chatID, "kind", item.Kind, "err", err)
		}
	}
	return cp.items[n:], 0, false
}

// sendGroupStep delivers one grouping unit: either a single voice item
// (voice never rides in a group) or a run of consecutive non-voice items
// up to the group ceiling.
func (e *Engine) sendGroupStep(ctx context.Context, st *conv.State, cp checkpoint) ([]conv.MediaItem, time.Duration, bool) {
	items := cp.items

	if items[0].Kind == conv.KindVoice {
		item := items[0]
		text := e.finalize(ctx, st, item, cp.mode, cp.value)
		if err := e.transport.SendItem(ctx, cp.chatID, item, text); err != nil {
			if rl, ok := AsRateLimit(err); ok {
				return items, rl.RetryAfter, true
			}
			slog.Error("failed to send voice item, skipping", "chat", cp.chatID, "err", err)
		}
		return items[1:], 0, false
	}

	run := 1
	for run < len(items) && run < e.opts.GroupChunkSize && items[run].Kind != conv.KindVoice {
		run++
	}
	group := items[:run]

	captions := make([]string, len(group))
	for i, item := range group {
		captions[i] = e.finalize(ctx, st, item, cp.mode, cp.value)
	}

	var err error
	if len(group) == 1 {
		err = e.transport.SendItem(ctx, cp.chatID, group[0], captions[0])
	} else {
		err = e.transport.SendGroup(ctx, cp.chatID, group, captions)
	}
	if err != nil {
		if rl, ok := AsRateLimit(err); ok {
			return items, rl.RetryAfter, true
		}
		slog.Error("failed to send group, skipping",
			"chat", cp.chatID, "size", len(group), "err", err)
	}
	return items[run:], 0, false
}

// finalize runs the transform and the post-processor chain for one item.
// Both delivery strategies go through here, so grouped and per-item sends
// produce identical captions.
func (e *Engine) finalize(ctx context.Context, st *conv.State, item conv.MediaItem, mode caption.Mode, value caption.Value) string {
	text := caption.Transform(item.Kind, mode, value, item.Caption, item.FileName)
	return e.chain.Apply(ctx, text, st.Replacements, st.Lang())
}
