package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// Challenge signatures observed across the evaluated chatbots. Body
// text is matched lowercased; selectors catch captcha frames and
// challenge overlays that carry no readable text.
var challengeTextIndicators = []string{
	"verify you are human",
	"unusual traffic",
	"are you a robot",
	"confirm you are not a robot",
	"checking your browser",
	"enable javascript and cookies",
	"access to this page has been denied",
	"complete the security check",
}

var challengeSelectors = []string{
	`iframe[src*="recaptcha"]`,
	`iframe[src*="hcaptcha"]`,
	`iframe[src*="turnstile"]`,
	`div.g-recaptcha`,
	`#challenge-form`,
	`#challenge-stage`,
	`div[class*="captcha"]`,
}

// challengeProbeJS reports the first matching signature, or "".
var challengeProbeJS = buildChallengeProbe()

func buildChallengeProbe() string {
	var b strings.Builder
	b.WriteString(`(() => {
  const text = (document.body && document.body.innerText || '').toLowerCase();
  const indicators = [`)
	for i, ind := range challengeTextIndicators {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", ind)
	}
	b.WriteString(`];
  for (const ind of indicators) {
    if (text.includes(ind)) return 'text: ' + ind;
  }
  const selectors = [`)
	for i, sel := range challengeSelectors {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", sel)
	}
	b.WriteString(`];
  for (const sel of selectors) {
    const el = document.querySelector(sel);
    if (el && el.offsetParent !== null) return 'selector: ' + sel;
  }
  return '';
})()`)
	return b.String()
}

// ChallengePresent probes the current page for bot-challenge
// signatures. The reason names the matched signature for the record's
// failure reason.
func (s *Session) ChallengePresent(ctx context.Context) (bool, string, error) {
	var reason string
	if err := s.Run(ctx, chromedp.Evaluate(challengeProbeJS, &reason)); err != nil {
		return false, "", fmt.Errorf("browser: challenge probe: %w", err)
	}
	return reason != "", reason, nil
}
