package search

import "time"

// State of one search run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// EventKind discriminates Event payloads.
type EventKind int

const (
	EventLog EventKind = iota
	EventProgress
	EventFound
	EventDone
)

// Event is one item on the run's event queue. The worker goroutine is
// the only producer; the UI drains the queue and renders it.
type Event struct {
	Kind EventKind

	// EventLog
	Message string

	// EventProgress
	Folder    string
	Processed int
	Total     int

	// EventFound
	Found *FoundInvoice

	// EventDone
	Summary *Summary
}

// FolderStats counts per-folder work for the final summary.
type FolderStats struct {
	Folder  string
	Checked int
	Matched int
}

// Summary closes out a run.
type Summary struct {
	State    State
	Found    int
	Checked  int
	Folders  []FolderStats
	Duration time.Duration
	Err      error
}
