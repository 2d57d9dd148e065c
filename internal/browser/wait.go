package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/microsoft/chatbench/internal/models"
)

// Streaming chat UIs have no completion event, so completion is
// inferred from text growth: the response is done when it is long
// enough and has stopped growing for a stability window. Latency is
// the instant of last growth, not the end of the window, so the
// stability wait does not inflate measured latency.
const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultStableWindow = 8 * time.Second
	DefaultMinLength    = 30
)

// StabilityOptions tune the completion wait.
type StabilityOptions struct {
	PollInterval time.Duration
	StableWindow time.Duration
	MinLength    int
	MaxWait      time.Duration

	// ChallengeCheck, when set, is polled during the wait; a positive
	// result aborts with models.ErrDetected.
	ChallengeCheck func(ctx context.Context) (bool, string, error)
}

func (o *StabilityOptions) withDefaults() StabilityOptions {
	out := *o
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.StableWindow <= 0 {
		out.StableWindow = DefaultStableWindow
	}
	if out.MinLength <= 0 {
		out.MinLength = DefaultMinLength
	}
	return out
}

// WaitResult is a completed stability wait.
type WaitResult struct {
	Text    string
	Latency time.Duration
}

// WaitForStableText polls fetch until the returned text reaches the
// minimum length and stays unchanged for the stability window.
// Returns models.ErrTimeout when MaxWait elapses first and
// models.ErrDetected when the challenge check fires mid-wait.
func WaitForStableText(ctx context.Context, fetch func(ctx context.Context) (string, error), opts StabilityOptions) (WaitResult, error) {
	o := opts.withDefaults()

	start := time.Now()
	deadline := start.Add(o.MaxWait)

	var lastText string
	lastGrowth := start
	challengeEvery := 10 // check roughly every 2s at the default poll

	ticker := time.NewTicker(o.PollInterval)
	defer ticker.Stop()

	for poll := 0; ; poll++ {
		select {
		case <-ctx.Done():
			return WaitResult{}, ctx.Err()
		case <-ticker.C:
		}

		if o.MaxWait > 0 && time.Now().After(deadline) {
			return WaitResult{}, fmt.Errorf("%w: no stable response after %s", models.ErrTimeout, o.MaxWait)
		}

		if o.ChallengeCheck != nil && poll%challengeEvery == 0 {
			hit, reason, err := o.ChallengeCheck(ctx)
			if err != nil {
				return WaitResult{}, err
			}
			if hit {
				return WaitResult{}, fmt.Errorf("%w: %s", models.ErrDetected, reason)
			}
		}

		text, err := fetch(ctx)
		if err != nil {
			// Transient extraction failures during streaming are normal;
			// the page may be re-rendering. Keep polling.
			continue
		}

		if len(text) > len(lastText) {
			lastText = text
			lastGrowth = time.Now()
			continue
		}

		if len(lastText) >= o.MinLength && time.Since(lastGrowth) >= o.StableWindow {
			return WaitResult{
				Text:    lastText,
				Latency: lastGrowth.Sub(start),
			}, nil
		}
	}
}
