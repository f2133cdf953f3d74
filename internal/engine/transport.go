package engine

import (
	"context"

	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
)

// Transport is the outbound side of the hosting platform: item sends,
// grouped sends, and user prompts. Any method may fail with a
// RateLimitError carrying the platform-advised wait.
type Transport interface {
	// SendItem re-sends one media item with its finalized caption.
	SendItem(ctx context.Context, chatID int64, item conv.MediaItem, caption string) error

	// SendGroup re-sends several items as one grouped message. captions is
	// parallel to items. Callers never place voice items in a group.
	SendGroup(ctx context.Context, chatID int64, items []conv.MediaItem, captions []string) error

	// SendText sends a plain notice.
	SendText(ctx context.Context, chatID int64, text string) error

	// PromptDone shows the "send more or press Done" affordance.
	PromptDone(ctx context.Context, chatID int64, count int) error

	// PromptMode shows the caption-mode selection keyboard.
	PromptMode(ctx context.Context, chatID int64, count int) error
}
