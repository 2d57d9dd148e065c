package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// scrollMetrics is the page geometry sampled between screenshots.
type scrollMetrics struct {
	ScrollY      float64 `json:"scrollY"`
	InnerHeight  float64 `json:"innerHeight"`
	ScrollHeight float64 `json:"scrollHeight"`
}

const scrollMetricsJS = `({
  scrollY: window.scrollY,
  innerHeight: window.innerHeight,
  scrollHeight: document.documentElement.scrollHeight
})`

// CaptureScrolling screenshots the full conversation by scrolling from
// the top in viewport-sized steps with a small overlap. Capture stops
// at the page bottom, when scrolling makes no progress, or at maxShots.
// Returned paths are in display order.
func (s *Session) CaptureScrolling(ctx context.Context, dir string, maxShots int) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("browser: creating screenshot dir: %w", err)
	}

	if err := s.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, 0)`, nil)); err != nil {
		return nil, fmt.Errorf("browser: scrolling to top: %w", err)
	}
	time.Sleep(400 * time.Millisecond)

	var paths []string
	prevY := -1.0

	for shot := 0; shot < maxShots; shot++ {
		var buf []byte
		if err := s.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
			return paths, fmt.Errorf("browser: capturing screenshot %d: %w", shot, err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%03d.png", shot))
		if err := os.WriteFile(path, buf, 0644); err != nil {
			return paths, fmt.Errorf("browser: writing %s: %w", path, err)
		}
		paths = append(paths, path)

		var m scrollMetrics
		if err := s.Run(ctx, chromedp.Evaluate(scrollMetricsJS, &m)); err != nil {
			return paths, fmt.Errorf("browser: reading scroll metrics: %w", err)
		}

		atBottom := m.ScrollY+m.InnerHeight >= m.ScrollHeight-2
		stuck := m.ScrollY == prevY
		if atBottom || stuck {
			break
		}
		prevY = m.ScrollY

		// 80% viewport step keeps an overlap so no content falls
		// between consecutive shots.
		step := m.InnerHeight * 0.8
		if err := s.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %f)`, step), nil)); err != nil {
			return paths, fmt.Errorf("browser: scrolling: %w", err)
		}
		time.Sleep(500 * time.Millisecond)
	}

	return paths, nil
}
