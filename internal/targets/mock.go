package targets

import (
	"context"
	"fmt"
	"sync"

	"github.com/microsoft/chatbench/internal/models"
)

// MockRunner is a scriptable in-memory target for tests and dry runs.
// Outcomes are keyed by prompt ID; unscripted prompts succeed with a
// canned response.
type MockRunner struct {
	id string

	mu       sync.Mutex
	outcomes map[string]MockOutcome
	submits  []string
	resets   int
	closed   bool
}

// MockOutcome scripts the result for one prompt. Err takes precedence
// when set. DetectOnce fails with detection on the first submission
// only, exercising the retry path.
type MockOutcome struct {
	Text       string
	LatencySec float64
	Err        error
	DetectOnce bool

	seen bool
}

// NewMockRunner creates a mock target with the given ID.
func NewMockRunner(id string) *MockRunner {
	return &MockRunner{
		id:       id,
		outcomes: make(map[string]MockOutcome),
	}
}

// Script sets the outcome for one prompt ID.
func (m *MockRunner) Script(promptID string, outcome MockOutcome) *MockRunner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[promptID] = outcome
	return m
}

func (m *MockRunner) ID() string {
	return m.id
}

func (m *MockRunner) Submit(ctx context.Context, prompt models.Prompt, _ string) (*SubmitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits = append(m.submits, prompt.ID)

	outcome, scripted := m.outcomes[prompt.ID]
	if !scripted {
		return &SubmitResult{
			Text:       fmt.Sprintf("Mock response for: %s", prompt.Text),
			LatencySec: 1.5,
		}, nil
	}

	if outcome.DetectOnce && !outcome.seen {
		outcome.seen = true
		m.outcomes[prompt.ID] = outcome
		return nil, fmt.Errorf("%w: scripted challenge", models.ErrDetected)
	}
	if outcome.Err != nil {
		return nil, outcome.Err
	}

	return &SubmitResult{Text: outcome.Text, LatencySec: outcome.LatencySec}, nil
}

func (m *MockRunner) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

func (m *MockRunner) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Submissions returns the prompt IDs submitted, in order.
func (m *MockRunner) Submissions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submits...)
}

// Resets returns how many times the session identity was reset.
func (m *MockRunner) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Closed reports whether Close was called.
func (m *MockRunner) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
