package conv

import "time"

// MediaKind identifies the platform media type of an item.
type MediaKind string

const (
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindDocument  MediaKind = "document"
	KindAnimation MediaKind = "animation"
	KindAudio     MediaKind = "audio"
	KindVoice     MediaKind = "voice"
)

// MediaItem is one received media reference awaiting delivery.
// The platform keeps the bytes; we only hold the opaque file reference.
// Items are immutable after ingestion.
type MediaItem struct {
	Kind     MediaKind
	FileID   string
	Caption  string
	FileName string
}

// Replacement is one (target, replacement) pair of the per-conversation
// substitution table.
type Replacement struct {
	Target      string `json:"target"`
	Replacement string `json:"replacement"`
}

// DefaultLanguage is the caption language assumed when none is configured.
const DefaultLanguage = "en"

// CancelTimer stops a pending debounce timer. It reports whether the timer
// was still pending.
type CancelTimer func() bool

// DialogStep tracks progress through the caption-mode dialog.
type DialogStep int

const (
	// StepAwaitingFirst waits for the mode's first text value.
	StepAwaitingFirst DialogStep = iota
	// StepAwaitingSecond waits for the replacement value (replace_links only).
	StepAwaitingSecond
	// StepDispatched marks a dialog whose delivery is in flight; further
	// text input is ignored until the batch clears.
	StepDispatched
)

// Dialog is the per-conversation dialog state: the selected caption mode
// and, for two-step modes, the value captured so far.
type Dialog struct {
	Mode   string
	Step   DialogStep
	Target string
}

// State is the aggregate for a single conversation. All fields except the
// preference snapshot are mutated only on the engine loop, so State itself
// carries no lock.
type State struct {
	ID    int64
	Items []MediaItem

	// Timer is the pending debounce timer, if any. At most one is armed.
	Timer CancelTimer

	// Dialog is the active caption-mode dialog, nil when idle.
	Dialog *Dialog

	// BatchSeq increments on every batch clear. Scheduled continuations
	// carry the sequence they were created under and no-op on mismatch.
	BatchSeq uint64

	// LastActivity is bumped on every media arrival or dialog step; the
	// sweeper uses it to reclaim abandoned batches.
	LastActivity time.Time

	Replacements []Replacement
	Language     string
}

// AppendItem adds one item to the pending batch, preserving arrival order.
func (s *State) AppendItem(item MediaItem) {
	s.Items = append(s.Items, item)
	s.LastActivity = time.Now()
}

// DrainItems removes and returns all pending items.
func (s *State) DrainItems() []MediaItem {
	items := s.Items
	s.Items = nil
	return items
}

// SnapshotItems returns a copy of the pending batch. Delivery works off the
// snapshot so later arrivals cannot alter in-flight checkpoints.
func (s *State) SnapshotItems() []MediaItem {
	out := make([]MediaItem, len(s.Items))
	copy(out, s.Items)
	return out
}

// ClearBatch drops the pending items and dialog together, cancels any
// debounce timer, and bumps the batch sequence so stale continuations
// detect the reset. The replacement table and language are untouched.
func (s *State) ClearBatch() {
	s.Items = nil
	s.Dialog = nil
	if s.Timer != nil {
		s.Timer()
		s.Timer = nil
	}
	s.BatchSeq++
}

// SetReplacement inserts or updates a substitution pair. An existing target
// keeps its position in the table (last write wins on the value).
func (s *State) SetReplacement(target, replacement string) {
	for i := range s.Replacements {
		if s.Replacements[i].Target == target {
			s.Replacements[i].Replacement = replacement
			return
		}
	}
	s.Replacements = append(s.Replacements, Replacement{Target: target, Replacement: replacement})
}

// RemoveReplacement deletes the pair for target. It reports whether a pair
// was removed.
func (s *State) RemoveReplacement(target string) bool {
	for i := range s.Replacements {
		if s.Replacements[i].Target == target {
			s.Replacements = append(s.Replacements[:i], s.Replacements[i+1:]...)
			return true
		}
	}
	return false
}

// Lang returns the conversation language, falling back to the default.
func (s *State) Lang() string {
	if s.Language == "" {
		return DefaultLanguage
	}
	return s.Language
}
