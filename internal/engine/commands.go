package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const startText = `🎯 Caption Bot

Send media and I'll give you caption options:

• New caption / keep original
• Append or prepend text
• Replace links
• Use filename (videos)
• Make album

Send your media!`

const helpText = `Caption Bot Help

1. Send media
2. Wait a moment, then press Done
3. Choose a caption mode
4. Get your media back

Commands:
/done - finish the current batch
/clear - drop the pending batch
/replace <target> <replacement> - add a global substitution
/replacements - list substitutions
/unreplace <target> - remove a substitution
/lang <code> - set caption language`

// handleCommand applies a parsed slash command. Parsing lives in the
// channel; effects live here.
func (e *Engine) handleCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	switch cmd {
	case "start":
		e.notify(ctx, chatID, startText)

	case "help":
		e.notify(ctx, chatID, helpText)

	case "done":
		e.completeBatch(ctx, chatID)

	case "clear":
		if st, ok := e.convs.Lookup(chatID); ok {
			st.ClearBatch()
		}
		e.notify(ctx, chatID, "Cleared!")

	case "replace":
		if len(args) < 2 {
			e.notify(ctx, chatID, "Usage: /replace <target> <replacement>")
			return
		}
		st := e.convs.GetOrCreate(chatID)
		st.SetReplacement(args[0], strings.Join(args[1:], " "))
		e.savePrefs(chatID)
		e.notify(ctx, chatID, fmt.Sprintf("Replacing %q from now on.", args[0]))

	case "replacements":
		st, ok := e.convs.Lookup(chatID)
		if !ok || len(st.Replacements) == 0 {
			e.notify(ctx, chatID, "No replacements set.")
			return
		}
		var b strings.Builder
		b.WriteString("Replacements:\n")
		for _, r := range st.Replacements {
			fmt.Fprintf(&b, "• %s → %s\n", r.Target, r.Replacement)
		}
		e.notify(ctx, chatID, b.String())

	case "unreplace":
		if len(args) < 1 {
			e.notify(ctx, chatID, "Usage: /unreplace <target>")
			return
		}
		st := e.convs.GetOrCreate(chatID)
		if st.RemoveReplacement(args[0]) {
			e.savePrefs(chatID)
			e.notify(ctx, chatID, fmt.Sprintf("Removed %q.", args[0]))
			return
		}
		e.notify(ctx, chatID, fmt.Sprintf("No replacement for %q.", args[0]))

	case "lang":
		st := e.convs.GetOrCreate(chatID)
		if len(args) < 1 {
			e.notify(ctx, chatID, fmt.Sprintf("Caption language: %s", st.Lang()))
			return
		}
		st.Language = strings.ToLower(args[0])
		e.savePrefs(chatID)
		e.notify(ctx, chatID, fmt.Sprintf("Caption language set to %s.", st.Lang()))

	default:
		e.notify(ctx, chatID, "Unknown command. Try /help.")
	}
}

func (e *Engine) savePrefs(chatID int64) {
	st, ok := e.convs.Lookup(chatID)
	if !ok {
		return
	}
	if err := e.convs.SavePrefs(st); err != nil {
		slog.Warn("failed to persist conversation prefs", "chat", chatID, "err", err)
	}
}
