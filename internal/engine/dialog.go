package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abraxas0001/Caption-Master-Pro/internal/caption"
	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
)

const (
	msgNoMedia         = "No media pending. Send media first."
	msgSendTarget      = "🔗 Send the link (or text) to replace:"
	msgSendReplacement = "🔗 Now send the replacement:"
)

// modePrompts are the follow-up questions for modes that need one value.
var modePrompts = map[caption.Mode]string{
	caption.ModeNew:       "✏️ Send the new caption:",
	caption.ModeAppend:    "➕ Send text to append:",
	caption.ModePrepend:   "⬆️ Send text to prepend:",
	caption.ModeAddToEach: "🔄 Send text to add below each filename:",
}

// handleSelection processes a caption-mode pick from the keyboard.
func (e *Engine) handleSelection(ctx context.Context, chatID int64, mode caption.Mode) {
	if !mode.Valid() {
		slog.Warn("ignoring unknown mode selection", "chat", chatID, "mode", mode)
		return
	}

	st, ok := e.convs.Lookup(chatID)
	if !ok || len(st.Items) == 0 {
		// rejected: no dialog transition happens on an empty batch
		e.notify(ctx, chatID, msgNoMedia)
		return
	}
	if st.Dialog != nil && st.Dialog.Step == conv.StepDispatched {
		return // delivery already in flight
	}
	st.LastActivity = time.Now()

	if !mode.NeedsInput() {
		e.dispatch(ctx, st, mode, caption.Value{})
		return
	}

	st.Dialog = &conv.Dialog{Mode: string(mode), Step: conv.StepAwaitingFirst}
	if mode.TwoStep() {
		e.notify(ctx, chatID, msgSendTarget)
		return
	}
	e.notify(ctx, chatID, modePrompts[mode])
}

// handleText processes free text: the Done token when idle, otherwise
// dialog input. Text outside any dialog is ignored.
func (e *Engine) handleText(ctx context.Context, chatID int64, text string) {
	st, ok := e.convs.Lookup(chatID)
	if !ok || st.Dialog == nil {
		if text == DoneToken {
			e.completeBatch(ctx, chatID)
		}
		return
	}

	d := st.Dialog
	mode := caption.Mode(d.Mode)
	st.LastActivity = time.Now()

	switch d.Step {
	case conv.StepAwaitingFirst:
		if mode.TwoStep() {
			d.Target = text
			d.Step = conv.StepAwaitingSecond
			e.notify(ctx, chatID, msgSendReplacement)
			return
		}
		e.dispatch(ctx, st, mode, caption.Value{Text: text})

	case conv.StepAwaitingSecond:
		e.dispatch(ctx, st, mode, caption.Value{Target: d.Target, Replacement: text})

	case conv.StepDispatched:
		// batch is being delivered; input is ignored until it clears
	}
}

// dispatch binds the resolved (mode, value) pair and starts delivery.
func (e *Engine) dispatch(ctx context.Context, st *conv.State, mode caption.Mode, value caption.Value) {
	if len(st.Items) == 0 {
		st.Dialog = nil
		e.notify(ctx, st.ID, msgNoMedia)
		return
	}

	st.Dialog = &conv.Dialog{Mode: string(mode), Step: conv.StepDispatched}
	if st.Timer != nil {
		st.Timer()
		st.Timer = nil
	}
	e.notify(ctx, st.ID, fmt.Sprintf("⚡ Processing %d items...", len(st.Items)))

	cp := checkpoint{
		chatID:  st.ID,
		seq:     st.BatchSeq,
		mode:    mode,
		value:   value,
		items:   st.SnapshotItems(),
		total:   len(st.Items),
		grouped: e.useGroups(mode, len(st.Items)),
	}
	e.deliverChunk(ctx, cp)
}

// useGroups decides the delivery strategy: filename-based captions need
// per-item sends, make_album always groups, everything else groups only
// past the threshold.
func (e *Engine) useGroups(mode caption.Mode, n int) bool {
	if mode.FilenameBased() {
		return false
	}
	if mode == caption.ModeMakeAlbum {
		return true
	}
	return n > e.opts.GroupThreshold
}
