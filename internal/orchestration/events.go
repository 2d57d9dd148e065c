package orchestration

import "github.com/microsoft/chatbench/internal/models"

// EventType identifies a progress event during a benchmark run.
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventTargetStart    EventType = "target_start"
	EventPairStart      EventType = "pair_start"
	EventPairRetry      EventType = "pair_retry"
	EventPairComplete   EventType = "pair_complete"
	EventPairSkipped    EventType = "pair_skipped"
	EventTargetComplete EventType = "target_complete"
	EventRunComplete    EventType = "run_complete"
)

// ProgressEvent carries progress information to registered listeners.
type ProgressEvent struct {
	EventType    EventType
	TargetID     string
	PromptID     string
	PromptNum    int
	TotalPrompts int
	TotalTargets int
	Status       models.Status
	DurationMs   int64
	Details      map[string]any
}

// ProgressListener receives progress events. Listeners run on the
// worker goroutines and must not block.
type ProgressListener func(event ProgressEvent)
