package targets

import (
	"context"
	"fmt"
	"strings"

	"github.com/microsoft/chatbench/internal/browser"
	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/models"
)

// SubmitResult is one successful prompt round trip.
type SubmitResult struct {
	Text        string
	LatencySec  float64
	Screenshots []string
}

// Runner drives one target end to end. Implementations are not safe
// for concurrent use; the orchestrator serializes prompts per target.
type Runner interface {
	ID() string
	// Submit sends one prompt and waits for the full response.
	// Failures wrap models.ErrDetected, models.ErrTimeout or
	// models.ErrExtraction so the caller can classify them.
	Submit(ctx context.Context, prompt models.Prompt, shotDir string) (*SubmitResult, error)
	// Reset discards the session identity, used before the single
	// post-detection retry.
	Reset(ctx context.Context) error
	Close()
}

// LiveRunner drives a real chatbot UI through a stealth browser
// session.
type LiveRunner struct {
	adapter  *Adapter
	session  *browser.Session
	maxShots int
}

// NewLiveRunner launches a browser session for the adapter's target.
func NewLiveRunner(ctx context.Context, adapter *Adapter, browserCfg config.BrowserConfig, maxShots int) (*LiveRunner, error) {
	session, err := browser.NewSession(ctx, browserCfg, adapter.ID())
	if err != nil {
		return nil, err
	}
	return &LiveRunner{adapter: adapter, session: session, maxShots: maxShots}, nil
}

func (r *LiveRunner) ID() string {
	return r.adapter.ID()
}

// Submit navigates to the chatbot, enters the prompt, and waits for a
// stable response. Challenge checks run before typing, right after
// submission, and periodically during the response wait.
func (r *LiveRunner) Submit(ctx context.Context, prompt models.Prompt, shotDir string) (*SubmitResult, error) {
	sel := r.adapter.Selectors()

	if err := r.session.Navigate(ctx, r.adapter.URL()); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}
	r.session.DismissConsent(ctx, sel.Consent)

	if hit, reason, err := r.session.ChallengePresent(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	} else if hit {
		return nil, fmt.Errorf("%w: on arrival: %s", models.ErrDetected, reason)
	}

	text := prompt.Text
	if prompt.ContextText != "" {
		text = prompt.ContextText + "\n\n" + prompt.Text
	}
	if err := r.session.TypeText(ctx, sel.Input, text); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}
	if err := r.session.Click(ctx, sel.Submit); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	}

	if hit, reason, err := r.session.ChallengePresent(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtraction, err)
	} else if hit {
		return nil, fmt.Errorf("%w: after submit: %s", models.ErrDetected, reason)
	}

	wait, err := browser.WaitForStableText(ctx, func(ctx context.Context) (string, error) {
		return r.session.InnerText(ctx, sel.Response)
	}, browser.StabilityOptions{
		MaxWait:        r.adapter.MaxWait(),
		ChallengeCheck: r.session.ChallengePresent,
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(wait.Text) == "" {
		return nil, fmt.Errorf("%w: response selector matched nothing", models.ErrExtraction)
	}

	shots, err := r.session.CaptureScrolling(ctx, shotDir, r.maxShots)
	if err != nil {
		// A response without screenshots is still a capture; the text
		// is the primary artifact.
		shots = nil
	}

	return &SubmitResult{
		Text:        wait.Text,
		LatencySec:  wait.Latency.Seconds(),
		Screenshots: shots,
	}, nil
}

// Reset relaunches the browser with a fresh identity.
func (r *LiveRunner) Reset(ctx context.Context) error {
	return r.session.Reset(ctx)
}

// Close releases the browser session.
func (r *LiveRunner) Close() {
	r.session.Close()
}
