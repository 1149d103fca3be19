package encode

import (
	"log/slog"
	"time"
)

// State is the lifecycle of an encoding session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

type EventKind string

const (
	EventStarted  EventKind = "encoding_started"
	EventProgress EventKind = "progress"
	EventLog      EventKind = "log"
	EventFinished EventKind = "encoding_finished"
)

// Event is delivered to listeners from the session goroutine.
type Event struct {
	Kind      EventKind  `json:"kind"`
	SessionID string     `json:"session_id"`
	Percent   int        `json:"percent,omitempty"`
	Level     slog.Level `json:"level"`
	Message   string     `json:"message,omitempty"`
	Result    *Result    `json:"result,omitempty"`
}

// Result is the immutable outcome of a session.
type Result struct {
	SessionID  string        `json:"session_id"`
	State      State         `json:"state"`
	Message    string        `json:"message"`
	ExitCode   int           `json:"exit_code"`
	Detail     string        `json:"detail,omitempty"` // tail of diagnostic output on failure
	OutputPath string        `json:"output_path"`
	LogPath    string        `json:"log_path,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Succeeded is shorthand for State == StateSucceeded.
func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// Listener receives session events. It must not block for long; it runs on
// the goroutine reading encoder output.
type Listener func(Event)
