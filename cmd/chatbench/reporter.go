package main

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/orchestration"
	"github.com/microsoft/chatbench/internal/reporting"
)

func verboseProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventRunStart:
		fmt.Printf("Starting capture: %d prompt(s) x %d target(s)...\n\n",
			event.TotalPrompts, event.TotalTargets)
	case orchestration.EventTargetStart:
		fmt.Printf("Target %s: starting\n", event.TargetID)
	case orchestration.EventPairStart:
		fmt.Printf("[%d/%d] %s -> %s\n", event.PromptNum, event.TotalPrompts,
			event.PromptID, event.TargetID)
	case orchestration.EventPairRetry:
		reason := ""
		if r, ok := event.Details["reason"].(string); ok {
			reason = r
		}
		fmt.Printf("  [RETRY] %s on %s: %s\n", event.PromptID, event.TargetID, reason)
	case orchestration.EventPairComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("  %s (%v)\n", statusIcon(event.Status)+" "+string(event.Status), duration)
	case orchestration.EventPairSkipped:
		fmt.Printf("[%d] %s -> %s [already captured]\n", event.PromptNum,
			event.PromptID, event.TargetID)
	case orchestration.EventTargetComplete:
		fmt.Printf("Target %s: done\n\n", event.TargetID)
	case orchestration.EventRunComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Capture completed in %v\n\n", duration)
	}
}

func simpleProgressListener(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventPairSkipped:
		fmt.Printf("✓ [%d] %s/%s [cached]\n", event.PromptNum, event.PromptID, event.TargetID)
	case orchestration.EventPairComplete:
		fmt.Printf("%s [%d/%d] %s/%s\n", statusIcon(event.Status),
			event.PromptNum, event.TotalPrompts, event.PromptID, event.TargetID)
	}
}

func statusIcon(status models.Status) string {
	if status == models.StatusSuccess {
		return "✓"
	}
	return "✗"
}

func printCaptureSummary(records []models.ResponseRecord) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" CAPTURE RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	type tally struct {
		total, success, detected, timeout, errored int
		latencySum                                 float64
	}
	byTarget := map[string]*tally{}
	var targetIDs []string
	for i := range records {
		r := &records[i]
		t := byTarget[r.TargetID]
		if t == nil {
			t = &tally{}
			byTarget[r.TargetID] = t
			targetIDs = append(targetIDs, r.TargetID)
		}
		t.total++
		switch r.Status {
		case models.StatusSuccess:
			t.success++
			t.latencySum += r.LatencySec
		case models.StatusDetected:
			t.detected++
		case models.StatusTimeout:
			t.timeout++
		case models.StatusError:
			t.errored++
		}
	}
	sort.Strings(targetIDs)

	fmt.Printf("%-20s %-8s %-10s %-10s %-8s %s\n",
		"Target", "OK", "Detected", "Timeout", "Error", "Avg Latency")
	fmt.Println("-" + strings.Repeat("-", 70))
	for _, id := range targetIDs {
		t := byTarget[id]
		avg := "-"
		if t.success > 0 {
			avg = fmt.Sprintf("%.1fs", t.latencySum/float64(t.success))
		}
		fmt.Printf("%-20s %-8d %-10d %-10d %-8d %s\n",
			id, t.success, t.detected, t.timeout, t.errored, avg)
	}
	fmt.Println()
}

func printCalibrationTable(report *models.CalibrationReport) {
	ids := make([]string, 0, len(report.Judges))
	for id := range report.Judges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("%-20s %-9s %-9s %-7s %-7s %-10s %-5s %s\n",
		"Judge", "Pearson", "Spearman", "MAE", "Bias", "Agree(±1)", "N", "Gate")
	fmt.Println("-" + strings.Repeat("-", 78))
	for _, id := range ids {
		jc := report.Judges[id]
		gate := "✓ pass"
		if !jc.Passed {
			gate = "✗ FAIL"
		}
		fmt.Printf("%-20s %-9s %-9s %-7s %-7s %-10s %-5d %s\n",
			id, formatStat(jc.Pearson), formatStat(jc.Spearman),
			formatStat(jc.MAE), formatStat(jc.Bias), formatStat(jc.Agreement),
			jc.N, gate)
	}
	fmt.Println()
}

func printComparisonTable(report *reporting.ComparisonReport) {
	fmt.Println("═" + strings.Repeat("═", 60))
	fmt.Println(" TARGET COMPARISON")
	fmt.Println("═" + strings.Repeat("═", 60))
	fmt.Println()
	fmt.Printf("%-4s %-16s %-8s %-10s %-10s %s\n",
		"#", "Target", "Overall", "Capture", "Latency", "Not Evaluable")
	fmt.Println("─" + strings.Repeat("─", 60))

	for i, t := range report.Targets {
		latency := "-"
		if t.MeanLatencySec > 0 {
			latency = fmt.Sprintf("%.1fs", t.MeanLatencySec)
		}
		fmt.Printf("%-4d %-16s %-8s %-10s %-10s %d\n",
			i+1, t.TargetID, formatStat(t.Overall),
			fmt.Sprintf("%.0f%%", t.SuccessRate*100), latency, t.NotEvaluable)
	}
	fmt.Println()

	if report.Calibration != nil {
		if excluded := report.Calibration.Excluded(); len(excluded) > 0 {
			fmt.Printf("Judges excluded by calibration gate: %s\n", strings.Join(excluded, ", "))
		}
	}
	for _, f := range report.Bias {
		fmt.Printf("⚠ Bias warning [%s]: %s\n", f.Kind, f.Detail)
	}
}

// formatStat renders a statistic, leaving NaN visibly blank.
func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
