// Package orchestration runs the evaluation loop: every prompt against
// every target, one session per target, bounded global concurrency,
// and a single-retry state machine for bot detections. Finalized
// records are persisted the moment they exist.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/targets"
)

// RecordSink receives finalized records. store.Store satisfies this.
type RecordSink interface {
	AppendRecord(r *models.ResponseRecord) error
}

// Runner executes a benchmark run over a fixed prompt corpus and a set
// of targets.
type Runner struct {
	runners []targets.Runner
	sink    RecordSink

	workers      int
	shotDir      string
	delayMin     time.Duration
	delayMax     time.Duration
	retryBackoff time.Duration
	completed    map[models.PairKey]bool
	listeners    []ProgressListener

	mu      sync.Mutex
	records []models.ResponseRecord
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds how many targets submit concurrently. Per-target
// concurrency is always 1; sessions hold conversation state.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithScreenshotDir sets the root directory for screenshot capture.
func WithScreenshotDir(dir string) RunnerOption {
	return func(r *Runner) { r.shotDir = dir }
}

// WithPacing sets the randomized delay between submissions on one
// target. Zero disables pacing (tests).
func WithPacing(min, max time.Duration) RunnerOption {
	return func(r *Runner) {
		r.delayMin = min
		r.delayMax = max
	}
}

// WithRetryBackoff sets the cool-down before the post-detection retry.
func WithRetryBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) { r.retryBackoff = d }
}

// WithCompleted skips pairs already finalized in a previous run,
// resuming an interrupted benchmark.
func WithCompleted(done map[models.PairKey]bool) RunnerOption {
	return func(r *Runner) { r.completed = done }
}

// NewRunner creates a runner over the given targets. Records are
// appended to sink as each pair finalizes.
func NewRunner(runners []targets.Runner, sink RecordSink, opts ...RunnerOption) *Runner {
	r := &Runner{
		runners:      runners,
		sink:         sink,
		workers:      2,
		delayMin:     3 * time.Second,
		delayMax:     8 * time.Second,
		retryBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnProgress registers a progress listener.
func (r *Runner) OnProgress(listener ProgressListener) {
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) emitProgress(event ProgressEvent) {
	for _, l := range r.listeners {
		l(event)
	}
}

// Run evaluates every prompt against every target and returns the
// finalized records from this invocation. Each target runs on its own
// goroutine with its prompts strictly serialized; a channel semaphore
// bounds how many targets are mid-submission at once. Cancellation
// stops cleanly after the in-flight pair; partial pairs are never
// persisted.
func (r *Runner) Run(ctx context.Context, prompts []models.Prompt) ([]models.ResponseRecord, error) {
	start := time.Now()
	r.emitProgress(ProgressEvent{
		EventType:    EventRunStart,
		TotalPrompts: len(prompts),
		TotalTargets: len(r.runners),
	})

	semaphore := make(chan struct{}, r.workers)
	g, gctx := errgroup.WithContext(ctx)

	for _, tr := range r.runners {
		tr := tr
		g.Go(func() error {
			defer tr.Close()
			return r.runTarget(gctx, tr, prompts, semaphore)
		})
	}

	err := g.Wait()

	r.mu.Lock()
	records := append([]models.ResponseRecord(nil), r.records...)
	r.mu.Unlock()

	r.emitProgress(ProgressEvent{
		EventType:  EventRunComplete,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return records, err
}

// runTarget submits the full corpus to one target, in order.
func (r *Runner) runTarget(ctx context.Context, tr targets.Runner, prompts []models.Prompt, semaphore chan struct{}) error {
	r.emitProgress(ProgressEvent{
		EventType:    EventTargetStart,
		TargetID:     tr.ID(),
		TotalPrompts: len(prompts),
	})

	for i := range prompts {
		prompt := &prompts[i]
		key := models.PairKey{PromptID: prompt.ID, TargetID: tr.ID()}

		if r.completed[key] {
			r.emitProgress(ProgressEvent{
				EventType: EventPairSkipped,
				TargetID:  tr.ID(),
				PromptID:  prompt.ID,
				PromptNum: i + 1,
			})
			continue
		}

		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		r.emitProgress(ProgressEvent{
			EventType:    EventPairStart,
			TargetID:     tr.ID(),
			PromptID:     prompt.ID,
			PromptNum:    i + 1,
			TotalPrompts: len(prompts),
		})

		record, err := r.runPair(ctx, tr, prompt)
		<-semaphore

		if err != nil {
			// Cancellation mid-pair: nothing is finalized for this
			// pair, nothing is persisted.
			return err
		}

		if err := r.sink.AppendRecord(record); err != nil {
			return fmt.Errorf("persisting record %s: %w", record.Key(), err)
		}

		r.mu.Lock()
		r.records = append(r.records, *record)
		r.mu.Unlock()

		r.emitProgress(ProgressEvent{
			EventType:    EventPairComplete,
			TargetID:     tr.ID(),
			PromptID:     prompt.ID,
			PromptNum:    i + 1,
			TotalPrompts: len(prompts),
			Status:       record.Status,
			DurationMs:   int64(record.LatencySec * 1000),
		})

		if i < len(prompts)-1 {
			r.pace(ctx)
		}
	}

	r.emitProgress(ProgressEvent{
		EventType: EventTargetComplete,
		TargetID:  tr.ID(),
	})
	return nil
}

// runPair drives one pair through its state machine to a terminal
// record. A detection is retried exactly once on a fresh session; a
// timeout is terminal immediately. Only cancellation returns an error.
func (r *Runner) runPair(ctx context.Context, tr targets.Runner, prompt *models.Prompt) (*models.ResponseRecord, error) {
	record := &models.ResponseRecord{
		PromptID: prompt.ID,
		TargetID: tr.ID(),
	}
	shotDir := filepath.Join(r.shotDir, prompt.ID, tr.ID())

	state := models.StateSubmitted
	result, err := tr.Submit(ctx, *prompt, shotDir)
	state, aborted := r.classify(ctx, state, err, record)
	if aborted != nil {
		return nil, aborted
	}

	if state == models.StateDetected {
		state = models.StateRetrying
		record.RetryCount = 1
		r.emitProgress(ProgressEvent{
			EventType: EventPairRetry,
			TargetID:  tr.ID(),
			PromptID:  prompt.ID,
			Details:   map[string]any{"reason": record.FailureReason},
		})

		if err := r.cooldown(ctx); err != nil {
			return nil, err
		}
		if err := tr.Reset(ctx); err != nil {
			slog.Warn("session reset failed", "target", tr.ID(), "error", err)
		}

		result, err = tr.Submit(ctx, *prompt, shotDir)
		state, aborted = r.classify(ctx, state, err, record)
		if aborted != nil {
			return nil, aborted
		}
		if state == models.StateDetected {
			state = models.StateDetectedFinal
		}
	}

	record.Status = state.RecordStatus()
	record.CapturedAt = time.Now().UTC()
	if result != nil && state == models.StateSucceeded {
		record.Text = result.Text
		record.LatencySec = result.LatencySec
		record.Screenshots = result.Screenshots
		record.FailureReason = ""
	}
	return record, nil
}

// classify maps a submission outcome onto the next pair state and
// annotates the record. A context error aborts the pair entirely.
func (r *Runner) classify(ctx context.Context, state models.PairState, err error, record *models.ResponseRecord) (models.PairState, error) {
	if err == nil {
		return models.StateSucceeded, nil
	}
	if ctx.Err() != nil {
		return state, ctx.Err()
	}

	record.FailureReason = err.Error()
	switch {
	case errors.Is(err, models.ErrDetected):
		record.DetectionEvents++
		return models.StateDetected, nil
	case errors.Is(err, models.ErrTimeout):
		return models.StateTimedOut, nil
	default:
		return models.StateExtractionFailed, nil
	}
}

// pace sleeps a randomized interval between submissions on one target,
// keeping request cadence human-shaped.
func (r *Runner) pace(ctx context.Context) {
	if r.delayMax <= 0 {
		return
	}
	d := r.delayMin
	if r.delayMax > r.delayMin {
		d += time.Duration(time.Now().UnixNano() % int64(r.delayMax-r.delayMin))
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

func (r *Runner) cooldown(ctx context.Context) error {
	if r.retryBackoff <= 0 {
		return nil
	}
	select {
	case <-time.After(r.retryBackoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
