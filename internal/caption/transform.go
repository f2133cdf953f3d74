// Package caption turns a media item's original caption into its final
// delivered form: a mode-driven transform followed by the per-conversation
// post-processor chain.
package caption

import (
	"strings"

	"github.com/abraxas0001/Caption-Master-Pro/internal/conv"
)

// Mode selects the caption transformation.
type Mode string

const (
	ModeNew             Mode = "new"
	ModeKeep            Mode = "keep"
	ModeAppend          Mode = "append"
	ModePrepend         Mode = "prepend"
	ModeReplaceLinks    Mode = "replace_links"
	ModeFilename        Mode = "filename"
	ModeFilenameWithCap Mode = "filename_with_cap"
	ModeAddToEach       Mode = "add_to_each"
	ModeMakeAlbum       Mode = "make_album"
)

// Modes lists every selectable mode, in keyboard order.
var Modes = []Mode{
	ModeNew, ModeKeep,
	ModeAppend, ModePrepend,
	ModeReplaceLinks, ModeFilename,
	ModeFilenameWithCap, ModeAddToEach,
	ModeMakeAlbum,
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// NeedsInput reports whether the mode requires at least one text value
// before dispatch.
func (m Mode) NeedsInput() bool {
	switch m {
	case ModeNew, ModeAppend, ModePrepend, ModeAddToEach, ModeReplaceLinks:
		return true
	}
	return false
}

// TwoStep reports whether the mode collects two values (target, then
// replacement). Only replace_links does.
func (m Mode) TwoStep() bool { return m == ModeReplaceLinks }

// FilenameBased reports whether the final caption depends on per-item
// filename state. These modes are never delivered as grouped sends.
func (m Mode) FilenameBased() bool {
	switch m {
	case ModeFilename, ModeFilenameWithCap, ModeAddToEach:
		return true
	}
	return false
}

// Value carries the user input bound to a dispatch. Text is set for
// single-input modes; Target/Replacement for replace_links.
type Value struct {
	Text        string
	Target      string
	Replacement string
}

// Transform maps (item, mode, user input) to the pre-chain caption.
func Transform(kind conv.MediaKind, mode Mode, v Value, original, filename string) string {
	switch mode {
	case ModeNew:
		return v.Text

	case ModeKeep, ModeMakeAlbum:
		// make_album is a grouping directive, not a caption mode
		return original

	case ModeAppend:
		if original == "" {
			return v.Text
		}
		return original + "\n" + v.Text

	case ModePrepend:
		if original == "" {
			return v.Text
		}
		return v.Text + "\n" + original

	case ModeReplaceLinks:
		// literal replace-all; unchanged when the target does not occur
		if v.Target == "" || !strings.Contains(original, v.Target) {
			return original
		}
		return strings.ReplaceAll(original, v.Target, v.Replacement)

	case ModeFilename:
		if kind != conv.KindVideo {
			return original
		}
		return stem(filename)

	case ModeFilenameWithCap:
		if kind != conv.KindVideo {
			return original
		}
		if original == "" {
			return stem(filename)
		}
		return stem(filename) + "\n" + original

	case ModeAddToEach:
		if kind != conv.KindVideo {
			return original
		}
		if v.Text == "" {
			return stem(filename)
		}
		return stem(filename) + "\n" + v.Text
	}
	return original
}

// stem strips the final extension segment: text before the last dot, or
// the whole name when it has none.
func stem(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[:i]
	}
	return filename
}
