// Package watcher keeps an ingested directory tree synchronized: it turns
// raw filesystem notifications into debounced document events the ingest
// pipeline can replay.
package watcher

import "time"

// Operation is the kind of change observed on a document.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change to an indexable document.
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long to wait for a burst of events on the
	// same path to settle before emitting.
	DebounceWindow time.Duration

	// EventBufferSize bounds the raw event channel.
	EventBufferSize int
}

// DefaultOptions returns the default watcher configuration.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		EventBufferSize: 1000,
	}
}
