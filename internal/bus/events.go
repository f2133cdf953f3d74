package bus

import "github.com/abraxas0001/Caption-Master-Pro/internal/conv"

// EventType tags the kind of an inbound event.
type EventType string

const (
	// EventMedia is a media message carrying one item to batch.
	EventMedia EventType = "media"
	// EventText is a free-text message (dialog input or the Done token).
	EventText EventType = "text"
	// EventSelection is a caption-mode pick from the inline keyboard.
	EventSelection EventType = "selection"
	// EventCommand is a parsed slash command.
	EventCommand EventType = "command"
	// EventTask is a scheduled continuation (timer fire, chunk resume).
	EventTask EventType = "task"
)

// Event is one unit of work for the engine loop. Exactly one of the
// type-specific fields is meaningful, selected by Type.
type Event struct {
	Type   EventType
	ChatID int64

	Media   *conv.MediaItem // EventMedia
	Text    string          // EventText
	Mode    string          // EventSelection
	Command string          // EventCommand
	Args    []string        // EventCommand
	Task    func()          // EventTask
}
