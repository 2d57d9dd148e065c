package models

// PairState is the lifecycle state of one (prompt, target) pair.
//
// Transitions:
//
//	Pending -> Submitted
//	Submitted -> Succeeded | Detected | TimedOut | ExtractionFailed
//	Detected -> Retrying
//	Retrying -> Succeeded | DetectedFinal | TimedOut | ExtractionFailed
//
// Terminal states produce exactly one ResponseRecord. Timeouts are never
// retried; a detection is retried exactly once with a fresh session.
type PairState string

const (
	StatePending          PairState = "pending"
	StateSubmitted        PairState = "submitted"
	StateSucceeded        PairState = "succeeded"
	StateDetected         PairState = "detected"
	StateRetrying         PairState = "retrying"
	StateDetectedFinal    PairState = "detected_final"
	StateTimedOut         PairState = "timed_out"
	StateExtractionFailed PairState = "extraction_failed"
)

// Terminal reports whether the state finalizes the pair.
func (s PairState) Terminal() bool {
	switch s {
	case StateSucceeded, StateDetectedFinal, StateTimedOut, StateExtractionFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal step.
func (s PairState) CanTransition(next PairState) bool {
	switch s {
	case StatePending:
		return next == StateSubmitted
	case StateSubmitted:
		switch next {
		case StateSucceeded, StateDetected, StateTimedOut, StateExtractionFailed:
			return true
		}
	case StateDetected:
		return next == StateRetrying
	case StateRetrying:
		switch next {
		case StateSucceeded, StateDetectedFinal, StateTimedOut, StateExtractionFailed:
			return true
		}
	}
	return false
}

// RecordStatus maps a terminal state to the record status it produces.
func (s PairState) RecordStatus() Status {
	switch s {
	case StateSucceeded:
		return StatusSuccess
	case StateDetectedFinal:
		return StatusDetected
	case StateTimedOut:
		return StatusTimeout
	case StateExtractionFailed:
		return StatusError
	}
	return StatusError
}
