package orchestration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/targets"
)

// memorySink collects appended records in memory.
type memorySink struct {
	mu      sync.Mutex
	records []models.ResponseRecord
}

func (s *memorySink) AppendRecord(r *models.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *r)
	return nil
}

func (s *memorySink) all() []models.ResponseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ResponseRecord(nil), s.records...)
}

func testPrompts(n int) []models.Prompt {
	prompts := make([]models.Prompt, n)
	for i := range prompts {
		prompts[i] = models.Prompt{
			ID:     fmt.Sprintf("p%03d", i+1),
			Intent: "qa",
			Text:   fmt.Sprintf("question %d", i+1),
		}
	}
	return prompts
}

func newTestRunner(sink RecordSink, mocks ...*targets.MockRunner) *Runner {
	runners := make([]targets.Runner, len(mocks))
	for i, m := range mocks {
		runners[i] = m
	}
	return NewRunner(runners, sink,
		WithWorkers(2),
		WithPacing(0, 0),
		WithRetryBackoff(0),
	)
}

func TestRunOneRecordPerPair(t *testing.T) {
	sink := &memorySink{}
	a := targets.NewMockRunner("target-a")
	b := targets.NewMockRunner("target-b")
	prompts := testPrompts(3)

	runner := newTestRunner(sink, a, b)
	records, err := runner.Run(context.Background(), prompts)
	require.NoError(t, err)

	assert.Len(t, records, 6)
	seen := make(map[models.PairKey]int)
	for _, r := range records {
		seen[r.Key()]++
		assert.Equal(t, models.StatusSuccess, r.Status)
		assert.NotEmpty(t, r.Text)
		assert.False(t, r.CapturedAt.IsZero())
	}
	assert.Len(t, seen, 6)
	for key, count := range seen {
		assert.Equal(t, 1, count, "duplicate record for %s", key)
	}

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestRunDetectionRetriedOnceWithReset(t *testing.T) {
	sink := &memorySink{}
	mock := targets.NewMockRunner("target-a").
		Script("p001", targets.MockOutcome{
			Text:       "recovered answer",
			LatencySec: 2.0,
			DetectOnce: true,
		})

	runner := newTestRunner(sink, mock)
	records, err := runner.Run(context.Background(), testPrompts(1))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, models.StatusSuccess, r.Status)
	assert.Equal(t, "recovered answer", r.Text)
	assert.Equal(t, 1, r.RetryCount)
	assert.Equal(t, 1, r.DetectionEvents)
	assert.Empty(t, r.FailureReason)

	// One reset between the two submissions of the same prompt.
	assert.Equal(t, 1, mock.Resets())
	assert.Equal(t, []string{"p001", "p001"}, mock.Submissions())
}

func TestRunSecondDetectionIsFinal(t *testing.T) {
	sink := &memorySink{}
	mock := targets.NewMockRunner("target-a").
		Script("p001", targets.MockOutcome{
			Err:        fmt.Errorf("%w: challenge persists", models.ErrDetected),
			DetectOnce: true,
		})

	runner := newTestRunner(sink, mock)
	records, err := runner.Run(context.Background(), testPrompts(1))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, models.StatusDetected, r.Status)
	assert.Equal(t, 1, r.RetryCount)
	assert.Equal(t, 2, r.DetectionEvents)
	assert.NotEmpty(t, r.FailureReason)
	assert.Empty(t, r.Text)
}

func TestRunTimeoutNeverRetried(t *testing.T) {
	sink := &memorySink{}
	mock := targets.NewMockRunner("target-a").
		Script("p001", targets.MockOutcome{
			Err: fmt.Errorf("%w: no stable response", models.ErrTimeout),
		})

	runner := newTestRunner(sink, mock)
	records, err := runner.Run(context.Background(), testPrompts(2))
	require.NoError(t, err)
	require.Len(t, records, 2)

	byPrompt := make(map[string]models.ResponseRecord)
	for _, r := range records {
		byPrompt[r.PromptID] = r
	}
	assert.Equal(t, models.StatusTimeout, byPrompt["p001"].Status)
	assert.Equal(t, 0, byPrompt["p001"].RetryCount)
	assert.Equal(t, models.StatusSuccess, byPrompt["p002"].Status)

	// The timed-out prompt was submitted exactly once.
	assert.Equal(t, []string{"p001", "p002"}, mock.Submissions())
	assert.Equal(t, 0, mock.Resets())
}

func TestRunExtractionErrorProducesErrorRecord(t *testing.T) {
	sink := &memorySink{}
	mock := targets.NewMockRunner("target-a").
		Script("p001", targets.MockOutcome{
			Err: fmt.Errorf("%w: empty response element", models.ErrExtraction),
		})

	runner := newTestRunner(sink, mock)
	records, err := runner.Run(context.Background(), testPrompts(1))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, models.StatusError, records[0].Status)
	assert.Contains(t, records[0].FailureReason, "empty response element")
}

func TestRunPerTargetOrderPreserved(t *testing.T) {
	sink := &memorySink{}
	a := targets.NewMockRunner("target-a")
	b := targets.NewMockRunner("target-b")
	prompts := testPrompts(5)

	runner := newTestRunner(sink, a, b)
	_, err := runner.Run(context.Background(), prompts)
	require.NoError(t, err)

	want := []string{"p001", "p002", "p003", "p004", "p005"}
	assert.Equal(t, want, a.Submissions())
	assert.Equal(t, want, b.Submissions())
}

func TestRunSkipsCompletedPairs(t *testing.T) {
	sink := &memorySink{}
	mock := targets.NewMockRunner("target-a")
	prompts := testPrompts(3)

	var skipped []string
	runner := NewRunner([]targets.Runner{mock}, sink,
		WithPacing(0, 0),
		WithCompleted(map[models.PairKey]bool{
			{PromptID: "p002", TargetID: "target-a"}: true,
		}),
	)
	runner.OnProgress(func(event ProgressEvent) {
		if event.EventType == EventPairSkipped {
			skipped = append(skipped, event.PromptID)
		}
	})

	records, err := runner.Run(context.Background(), prompts)
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, []string{"p001", "p003"}, mock.Submissions())
	assert.Equal(t, []string{"p002"}, skipped)
}

func TestRunPersistsIncrementally(t *testing.T) {
	sink := &memorySink{}
	mock := targets.NewMockRunner("target-a")

	var persistedAtComplete []int
	runner := newTestRunner(sink, mock)
	runner.OnProgress(func(event ProgressEvent) {
		if event.EventType == EventPairComplete {
			persistedAtComplete = append(persistedAtComplete, len(sink.all()))
		}
	})

	_, err := runner.Run(context.Background(), testPrompts(3))
	require.NoError(t, err)

	// Each pair is in the sink by the time its completion event fires.
	assert.Equal(t, []int{1, 2, 3}, persistedAtComplete)
}

func TestRunCancellationPersistsNoPartialRecord(t *testing.T) {
	sink := &memorySink{}
	ctx, cancel := context.WithCancel(context.Background())

	mock := targets.NewMockRunner("target-a")
	runner := newTestRunner(sink, mock)
	runner.OnProgress(func(event ProgressEvent) {
		// Cancel while the second pair is in flight.
		if event.EventType == EventPairStart && event.PromptID == "p002" {
			cancel()
		}
	})

	records, err := runner.Run(ctx, testPrompts(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The first pair finished and persisted; the cancelled pair did not.
	for _, r := range sink.all() {
		assert.Equal(t, "p001", r.PromptID)
	}
	assert.LessOrEqual(t, len(records), 1)
}

func TestRunProgressEventSequence(t *testing.T) {
	sink := &memorySink{}
	mock := targets.NewMockRunner("target-a")

	var events []EventType
	var mu sync.Mutex
	runner := newTestRunner(sink, mock)
	runner.OnProgress(func(event ProgressEvent) {
		mu.Lock()
		events = append(events, event.EventType)
		mu.Unlock()
	})

	_, err := runner.Run(context.Background(), testPrompts(2))
	require.NoError(t, err)

	assert.Equal(t, []EventType{
		EventRunStart,
		EventTargetStart,
		EventPairStart, EventPairComplete,
		EventPairStart, EventPairComplete,
		EventTargetComplete,
		EventRunComplete,
	}, events)
}

func TestRunWorkersBoundConcurrency(t *testing.T) {
	sink := &memorySink{}
	mocks := make([]targets.Runner, 4)
	for i := range mocks {
		mocks[i] = targets.NewMockRunner(fmt.Sprintf("target-%d", i))
	}

	runner := NewRunner(mocks, sink, WithWorkers(1), WithPacing(0, 0))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := runner.Run(context.Background(), testPrompts(2))
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish with workers=1")
	}
	assert.Len(t, sink.all(), 8)
}
