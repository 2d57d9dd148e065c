// Package browser manages detection-resistant Chrome sessions for
// chatbot web UIs: masked automation fingerprint, persistent per-target
// profiles, human-paced input, and challenge detection.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/microsoft/chatbench/internal/config"
)

const (
	viewportWidth  = 1920
	viewportHeight = 1080

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// stealthJS runs before any page script and hides the usual automation
// tells: navigator.webdriver, the empty plugin list, and the missing
// chrome runtime object.
const stealthJS = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
window.chrome = window.chrome || { runtime: {} };
`

// Session owns one Chrome instance bound to one target. A session is
// not safe for concurrent use; the orchestrator serializes all prompts
// for a target through its single session.
type Session struct {
	targetID string
	cfg      config.BrowserConfig

	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	// generation increments on Reset so a retried submission gets a
	// fresh profile directory and browser identity.
	generation int
}

// NewSession launches a stealth-configured Chrome for one target.
func NewSession(parent context.Context, cfg config.BrowserConfig, targetID string) (*Session, error) {
	s := &Session{targetID: targetID, cfg: cfg}
	if err := s.launch(parent); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) launch(parent context.Context) error {
	profile := s.profileDir()
	if err := os.MkdirAll(profile, 0755); err != nil {
		return fmt.Errorf("browser: creating profile dir: %w", err)
	}

	headless := true
	if s.cfg.Headless != nil {
		headless = *s.cfg.Headless
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profile),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(viewportWidth, viewportHeight),
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "en-US"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("exclude-switches", "enable-automation"),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf("chromedp: "+format, args...), "target", s.targetID)
	}))

	// Install the fingerprint mask before any navigation.
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx)
		return err
	})); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("browser: starting session for %s: %w", s.targetID, err)
	}

	s.allocCancel = allocCancel
	s.ctx = ctx
	s.cancel = cancel
	return nil
}

func (s *Session) profileDir() string {
	name := s.targetID
	if s.generation > 0 {
		name = fmt.Sprintf("%s-retry%d", s.targetID, s.generation)
	}
	return filepath.Join(s.cfg.ProfileDir, name)
}

// TargetID returns the target this session serves.
func (s *Session) TargetID() string {
	return s.targetID
}

// Run executes chromedp actions in this session, bounded by ctx.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx == nil {
		return fmt.Errorf("browser: session for %s is closed", s.targetID)
	}
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(s.ctx, actions...)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Navigate loads a URL and waits for the body to be visible.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: navigating to %s: %w", url, err)
	}
	// Settle pause, roughly what a human needs to orient on the page.
	HumanPause(1*time.Second, 3*time.Second)
	return nil
}

// Reset tears the browser down and relaunches with a fresh profile
// directory, giving the retry a clean identity after a detection.
func (s *Session) Reset(parent context.Context) error {
	s.shutdown()
	s.generation++
	slog.Info("resetting browser session", "target", s.targetID, "generation", s.generation)
	return s.launch(parent)
}

func (s *Session) shutdown() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	s.ctx = nil
}

// Close releases the browser. Safe to call more than once.
func (s *Session) Close() {
	s.shutdown()
}

// HumanPause sleeps for a uniformly random duration in [min, max],
// keeping submission cadence irregular.
func HumanPause(min, max time.Duration) {
	if max <= min {
		time.Sleep(min)
		return
	}
	time.Sleep(min + time.Duration(rand.Int63n(int64(max-min))))
}
