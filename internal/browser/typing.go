package browser

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
)

// Typing pace. Long prompts are set in one shot because minutes of
// simulated keystrokes look stranger than a paste.
const (
	perKeyMin = 30 * time.Millisecond
	perKeyMax = 80 * time.Millisecond

	pasteThreshold = 100
)

// TypeText enters text into the element matched by selector. Short
// text is typed key by key with jittered delays; long text is filled
// directly, mimicking a paste.
func (s *Session) TypeText(ctx context.Context, selector, text string) error {
	if err := s.Run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: focusing %s: %w", selector, err)
	}

	if len(text) > pasteThreshold {
		if err := s.Run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("browser: filling %s: %w", selector, err)
		}
		return nil
	}

	for _, r := range text {
		if err := s.Run(ctx, chromedp.SendKeys(selector, string(r), chromedp.ByQuery)); err != nil {
			return fmt.Errorf("browser: typing into %s: %w", selector, err)
		}
		time.Sleep(perKeyMin + time.Duration(rand.Int63n(int64(perKeyMax-perKeyMin))))
	}
	return nil
}

// Click clicks the element matched by selector after a short pause.
func (s *Session) Click(ctx context.Context, selector string) error {
	HumanPause(200*time.Millisecond, 600*time.Millisecond)
	if err := s.Run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: clicking %s: %w", selector, err)
	}
	return nil
}

// InnerText returns the trimmed text content of the last element
// matching selector, or "" when nothing matches yet.
func (s *Session) InnerText(ctx context.Context, selector string) (string, error) {
	js := fmt.Sprintf(`(() => {
  const els = document.querySelectorAll(%q);
  if (els.length === 0) return '';
  return els[els.length - 1].innerText.trim();
})()`, selector)

	var text string
	if err := s.Run(ctx, chromedp.Evaluate(js, &text)); err != nil {
		return "", fmt.Errorf("browser: reading %s: %w", selector, err)
	}
	return text, nil
}

// DismissConsent clicks the first matching cookie/consent button, if
// any. Missing banners are not an error.
func (s *Session) DismissConsent(ctx context.Context, selectors []string) {
	for _, sel := range selectors {
		js := fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (el && el.offsetParent !== null) { el.click(); return true; }
  return false;
})()`, sel)
		var clicked bool
		if err := s.Run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
			continue
		}
		if clicked {
			HumanPause(300*time.Millisecond, 800*time.Millisecond)
			return
		}
	}
}
