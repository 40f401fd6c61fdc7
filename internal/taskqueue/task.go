// internal/taskqueue/task.go
package taskqueue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task is one retryable unit of work. Delivery is at-least-once: a task may
// execute more than once after a timeout or crash, even after partial side
// effects, so every handler must tolerate re-execution.
type Task struct {
	Name        string          `json:"name"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	MaxAttempts int             `json:"max_attempts"`
	Timeout     time.Duration   `json:"timeout"`
	Delay       time.Duration   `json:"delay,omitempty"`
}

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second
)

// Envelope is the wire form of a scheduled task. Pending holds the rest of a
// dependent chain; the next task is only published after this one returns
// nil. OnAbandon is dispatched exactly once per chain, after the current
// task's attempt budget is exhausted.
type Envelope struct {
	ID        string    `json:"id"`
	Task      Task      `json:"task"`
	Attempt   int       `json:"attempt"`
	NotBefore time.Time `json:"not_before,omitempty"`
	ChainID   string    `json:"chain_id,omitempty"`
	Pending   []Task    `json:"pending,omitempty"`
	OnAbandon *Task     `json:"on_abandon,omitempty"`
}

func newEnvelope(t Task) *Envelope {
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = DefaultMaxAttempts
	}
	if t.Timeout <= 0 {
		t.Timeout = DefaultTimeout
	}
	env := &Envelope{
		ID:      uuid.NewString(),
		Task:    t,
		Attempt: 1,
	}
	if t.Delay > 0 {
		env.NotBefore = time.Now().Add(t.Delay)
	}
	return env
}
