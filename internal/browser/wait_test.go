package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPage feeds text snapshots to the waiter, one per poll.
type scriptedPage struct {
	mu    sync.Mutex
	steps []string
	pos   int
}

func (p *scriptedPage) fetch(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos < len(p.steps) {
		s := p.steps[p.pos]
		p.pos++
		return s, nil
	}
	return p.steps[len(p.steps)-1], nil
}

func fastOpts(maxWait time.Duration) StabilityOptions {
	return StabilityOptions{
		PollInterval: time.Millisecond,
		StableWindow: 20 * time.Millisecond,
		MinLength:    10,
		MaxWait:      maxWait,
	}
}

func TestWaitForStableTextCompletes(t *testing.T) {
	page := &scriptedPage{steps: []string{
		"",
		"The answer",
		"The answer is forty",
		"The answer is forty-two.",
	}}

	got, err := WaitForStableText(context.Background(), page.fetch, fastOpts(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "The answer is forty-two.", got.Text)
	assert.Greater(t, got.Latency, time.Duration(0))
}

func TestWaitForStableTextLatencyExcludesStabilityWindow(t *testing.T) {
	page := &scriptedPage{steps: []string{"a complete response right away"}}

	opts := fastOpts(time.Second)
	opts.StableWindow = 100 * time.Millisecond

	start := time.Now()
	got, err := WaitForStableText(context.Background(), page.fetch, opts)
	elapsed := time.Since(start)

	require.NoError(t, err)
	// The wall clock includes the 100ms stability window; the reported
	// latency must not.
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, got.Latency, 50*time.Millisecond)
}

func TestWaitForStableTextTimeout(t *testing.T) {
	// Never reaches the minimum length.
	page := &scriptedPage{steps: []string{"short"}}

	_, err := WaitForStableText(context.Background(), page.fetch, fastOpts(50*time.Millisecond))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTimeout))
}

func TestWaitForStableTextChallengeAborts(t *testing.T) {
	page := &scriptedPage{steps: []string{"some growing response text"}}

	opts := fastOpts(time.Second)
	opts.ChallengeCheck = func(_ context.Context) (bool, string, error) {
		return true, "text: verify you are human", nil
	}

	_, err := WaitForStableText(context.Background(), page.fetch, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDetected))
	assert.Contains(t, err.Error(), "verify you are human")
}

func TestWaitForStableTextContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &scriptedPage{steps: []string{"whatever text this is"}}
	_, err := WaitForStableText(ctx, page.fetch, fastOpts(time.Second))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWaitForStableTextToleratesFetchErrors(t *testing.T) {
	var calls int
	fetch := func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("node re-rendering")
		}
		return "a stable response of good length", nil
	}

	got, err := WaitForStableText(context.Background(), fetch, fastOpts(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "a stable response of good length", got.Text)
}

func TestChallengeProbeContainsSignatures(t *testing.T) {
	// The generated JS must embed every configured signature.
	for _, ind := range challengeTextIndicators {
		assert.Contains(t, challengeProbeJS, ind)
	}
	for _, sel := range challengeSelectors {
		assert.Contains(t, challengeProbeJS, sel)
	}
}
