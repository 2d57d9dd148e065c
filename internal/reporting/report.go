// Package reporting turns finalized run data into a comparison report.
// Building a report is a pure function over records, aggregates, and
// calibration results; writers serialize the built value.
package reporting

import (
	"sort"
	"time"

	"github.com/microsoft/chatbench/internal/calibration"
	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/statistics"
)

// TargetSummary is one target's row in the comparison report.
type TargetSummary struct {
	TargetID       string                         `json:"target_id"`
	Overall        float64                        `json:"overall"`
	OverallCI      *statistics.ConfidenceInterval `json:"overall_ci,omitempty"`
	ByDimension    map[models.Dimension]float64   `json:"by_dimension"`
	Evaluated      int                            `json:"evaluated"`
	NotEvaluable   int                            `json:"not_evaluable"`
	SuccessRate    float64                        `json:"success_rate"`
	MeanLatencySec float64                        `json:"mean_latency_sec"`
	Detections     int                            `json:"detections"`
	Timeouts       int                            `json:"timeouts"`
	Errors         int                            `json:"errors"`
}

// ComparisonReport is the final output of a benchmark run: every target
// summarized and ranked, with the calibration context the scores were
// produced under.
type ComparisonReport struct {
	RunID       string                    `json:"run_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Prompts     int                       `json:"prompts"`
	Targets     []TargetSummary           `json:"targets"`
	Ranking     []string                  `json:"ranking"`
	Calibration *models.CalibrationReport `json:"calibration,omitempty"`
	Bias        []calibration.Finding     `json:"bias_findings,omitempty"`
}

// Build assembles a comparison report. Targets are ranked by overall
// score, descending; targets with no evaluable records sort last.
func Build(manifest *models.RunManifest, records []models.ResponseRecord, aggregates []models.TargetAggregate, cal *models.CalibrationReport, bias []calibration.Finding) *ComparisonReport {
	byTarget := make(map[string]*TargetSummary, len(aggregates))
	for _, agg := range aggregates {
		byDim := make(map[models.Dimension]float64, len(agg.ByDimension))
		for d, v := range agg.ByDimension {
			byDim[d] = v
		}
		byTarget[agg.TargetID] = &TargetSummary{
			TargetID:     agg.TargetID,
			Overall:      agg.Overall,
			OverallCI:    agg.OverallCI,
			ByDimension:  byDim,
			Evaluated:    agg.Evaluated,
			NotEvaluable: agg.NotEvaluable,
		}
	}

	type tally struct {
		total, success, detections, timeouts, errors int
		latencySum                                   float64
	}
	tallies := make(map[string]*tally)
	for _, r := range records {
		t := tallies[r.TargetID]
		if t == nil {
			t = &tally{}
			tallies[r.TargetID] = t
		}
		t.total++
		switch r.Status {
		case models.StatusSuccess:
			t.success++
			t.latencySum += r.LatencySec
		case models.StatusDetected:
			t.detections++
		case models.StatusTimeout:
			t.timeouts++
		case models.StatusError:
			t.errors++
		}
	}

	for id, t := range tallies {
		s := byTarget[id]
		if s == nil {
			s = &TargetSummary{TargetID: id, ByDimension: map[models.Dimension]float64{}}
			byTarget[id] = s
		}
		if t.total > 0 {
			s.SuccessRate = float64(t.success) / float64(t.total)
		}
		if t.success > 0 {
			s.MeanLatencySec = t.latencySum / float64(t.success)
		}
		s.Detections = t.detections
		s.Timeouts = t.timeouts
		s.Errors = t.errors
	}

	targets := make([]TargetSummary, 0, len(byTarget))
	for _, s := range byTarget {
		targets = append(targets, *s)
	}
	sort.Slice(targets, func(i, j int) bool {
		oi, oj := targets[i].Overall, targets[j].Overall
		// NaN overalls (no evaluable records) rank last.
		if oi != oi {
			return false
		}
		if oj != oj {
			return true
		}
		if oi != oj {
			return oi > oj
		}
		return targets[i].TargetID < targets[j].TargetID
	})

	ranking := make([]string, len(targets))
	for i, s := range targets {
		ranking[i] = s.TargetID
	}

	report := &ComparisonReport{
		GeneratedAt: time.Now().UTC(),
		Targets:     targets,
		Ranking:     ranking,
		Calibration: cal,
		Bias:        bias,
	}
	if manifest != nil {
		report.RunID = manifest.RunID
		report.Prompts = manifest.Prompts
	}
	return report
}
