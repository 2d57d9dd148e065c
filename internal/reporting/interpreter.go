package reporting

import (
	"fmt"
	"math"
	"strings"

	"github.com/microsoft/chatbench/internal/models"
)

// InterpretScore returns a plain-language label for a 1-5 scale score.
func InterpretScore(score float64) string {
	switch {
	case math.IsNaN(score):
		return "Not evaluable"
	case score >= 4.5:
		return "Excellent (4.5+)"
	case score >= 3.5:
		return "Good (3.5-4.5)"
	case score >= 2.5:
		return "Mixed (2.5-3.5)"
	default:
		return "Poor (<2.5)"
	}
}

// InterpretSuccessRate returns a human-readable explanation of a
// capture success rate (0-1).
func InterpretSuccessRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All captures succeeded (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most captures succeeded (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the captures succeeded (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few captures succeeded (%.0f%%)", pct)
	}
}

// FormatSummary produces a full plain-language report.
func FormatSummary(report *ComparisonReport) string {
	var b strings.Builder

	b.WriteString("=== Comparison Report ===\n\n")
	if report.RunID != "" {
		b.WriteString(fmt.Sprintf("Run:     %s\n", report.RunID))
	}
	b.WriteString(fmt.Sprintf("Prompts: %d\n", report.Prompts))
	b.WriteString(fmt.Sprintf("Targets: %d\n\n", len(report.Targets)))

	for i, t := range report.Targets {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, t.TargetID))
		b.WriteString(fmt.Sprintf("   Overall: %.2f — %s\n", t.Overall, InterpretScore(t.Overall)))
		b.WriteString(fmt.Sprintf("   Capture: %s\n", InterpretSuccessRate(t.SuccessRate)))
		if t.MeanLatencySec > 0 {
			b.WriteString(fmt.Sprintf("   Latency: %.1fs mean first-response\n", t.MeanLatencySec))
		}
		for _, d := range models.AllDimensions {
			if v, ok := t.ByDimension[d]; ok && !math.IsNaN(v) {
				b.WriteString(fmt.Sprintf("   %-12s %.2f\n", string(d)+":", v))
			}
		}
		if t.NotEvaluable > 0 {
			b.WriteString(fmt.Sprintf("   Not evaluable: %d (detections=%d timeouts=%d errors=%d)\n",
				t.NotEvaluable, t.Detections, t.Timeouts, t.Errors))
		}
		b.WriteString("\n")
	}

	if report.Calibration != nil {
		if excluded := report.Calibration.Excluded(); len(excluded) > 0 {
			b.WriteString(fmt.Sprintf("Judges excluded by calibration gate: %s\n",
				strings.Join(excluded, ", ")))
		}
	}
	for _, f := range report.Bias {
		b.WriteString(fmt.Sprintf("Bias warning [%s]: %s\n", f.Kind, f.Detail))
	}

	return b.String()
}
