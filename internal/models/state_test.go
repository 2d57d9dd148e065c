package models

import "testing"

func TestPairStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from PairState
		to   PairState
		want bool
	}{
		{"pending to submitted", StatePending, StateSubmitted, true},
		{"pending cannot skip to succeeded", StatePending, StateSucceeded, false},
		{"submitted to succeeded", StateSubmitted, StateSucceeded, true},
		{"submitted to detected", StateSubmitted, StateDetected, true},
		{"submitted to timed out", StateSubmitted, StateTimedOut, true},
		{"submitted to extraction failed", StateSubmitted, StateExtractionFailed, true},
		{"detected to retrying", StateDetected, StateRetrying, true},
		{"detected cannot finalize directly", StateDetected, StateDetectedFinal, false},
		{"retrying to succeeded", StateRetrying, StateSucceeded, true},
		{"retrying to detected final", StateRetrying, StateDetectedFinal, true},
		{"retrying cannot re-enter detected", StateRetrying, StateDetected, false},
		{"timeout is terminal", StateTimedOut, StateRetrying, false},
		{"succeeded is terminal", StateSucceeded, StateSubmitted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPairStateTerminal(t *testing.T) {
	terminal := []PairState{StateSucceeded, StateDetectedFinal, StateTimedOut, StateExtractionFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	nonTerminal := []PairState{StatePending, StateSubmitted, StateDetected, StateRetrying}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestTerminalStateRecordStatus(t *testing.T) {
	tests := []struct {
		state PairState
		want  Status
	}{
		{StateSucceeded, StatusSuccess},
		{StateDetectedFinal, StatusDetected},
		{StateTimedOut, StatusTimeout},
		{StateExtractionFailed, StatusError},
	}
	for _, tt := range tests {
		if got := tt.state.RecordStatus(); got != tt.want {
			t.Errorf("RecordStatus(%s) = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestDimensionWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, w := range DimensionWeights {
		sum += w
	}
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("dimension weights sum to %v, want 1.0", sum)
	}
}

func TestResponseRecordEvaluable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusSuccess, true},
		{StatusTimeout, false},
		{StatusDetected, false},
		{StatusError, false},
	}
	for _, tt := range tests {
		r := ResponseRecord{PromptID: "p1", TargetID: "t1", Status: tt.status}
		if got := r.Evaluable(); got != tt.want {
			t.Errorf("Evaluable() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestDimensionScoreValid(t *testing.T) {
	ok := DimensionScore{Score: 3}
	if !ok.Valid() {
		t.Error("score 3 should be valid")
	}
	for _, bad := range []DimensionScore{
		{Score: 0},
		{Score: 6},
		{Score: 4, Unscorable: true},
	} {
		if bad.Valid() {
			t.Errorf("score %+v should be invalid", bad)
		}
	}
}
