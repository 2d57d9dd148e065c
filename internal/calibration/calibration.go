// Package calibration validates judges against a human-scored gold set
// and screens runs for systematic judge bias. Judges that fail the
// hard gate are excluded from comparative reporting; bias findings are
// recommendations only, never automatic corrections.
package calibration

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/judge"
	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/statistics"
)

// Thresholds are the hard gate a judge must clear.
type Thresholds struct {
	MinPearson   float64
	MaxMAE       float64
	MinAgreement float64
}

// FromConfig extracts gate thresholds from benchmark configuration.
func FromConfig(c config.CalibrationConfig) Thresholds {
	return Thresholds{
		MinPearson:   c.MinPearson,
		MaxMAE:       c.MaxMAE,
		MinAgreement: c.MinAgreement,
	}
}

// Run scores every gold-set item with one judge and measures agreement
// with the human scores. Unscorable verdicts are dropped from the
// comparison, not counted as errors.
func Run(ctx context.Context, scorer judge.Scorer, gold []models.GoldSetItem, th Thresholds) (models.JudgeCalibration, error) {
	if len(gold) == 0 {
		return models.JudgeCalibration{}, fmt.Errorf("calibration: empty gold set")
	}

	var predicted, actual []float64
	for i := range gold {
		item := &gold[i]
		score, err := scorer.Score(ctx, judge.Request{
			PromptID:   fmt.Sprintf("gold-%d", i+1),
			PromptText: item.Prompt,
			Context:    item.Context,
			Response:   item.Response,
			Dimension:  item.Dimension,
		})
		if err != nil {
			return models.JudgeCalibration{}, fmt.Errorf("calibration: judge %s: %w", scorer.ID(), err)
		}
		if !score.Valid() {
			continue
		}
		predicted = append(predicted, float64(score.Score))
		actual = append(actual, float64(item.HumanScore))
	}

	jc := models.JudgeCalibration{
		JudgeID:   scorer.ID(),
		Pearson:   statistics.Pearson(predicted, actual),
		Spearman:  statistics.Spearman(predicted, actual),
		MAE:       statistics.MAE(predicted, actual),
		Bias:      statistics.SignedBias(predicted, actual),
		Agreement: statistics.AgreementWithin(predicted, actual, 1),
		N:         len(predicted),
	}
	jc.Passed = Passes(jc, th)
	return jc, nil
}

// Passes applies the hard gate. A NaN statistic (too few usable
// verdicts, zero variance) always fails.
func Passes(jc models.JudgeCalibration, th Thresholds) bool {
	if math.IsNaN(jc.Pearson) || math.IsNaN(jc.MAE) || math.IsNaN(jc.Agreement) {
		return false
	}
	return jc.Pearson >= th.MinPearson && jc.MAE <= th.MaxMAE && jc.Agreement >= th.MinAgreement
}

// RunAll calibrates every judge in the pool against the gold set.
func RunAll(ctx context.Context, pool *judge.Pool, gold []models.GoldSetItem, th Thresholds) (*models.CalibrationReport, error) {
	report := &models.CalibrationReport{
		Timestamp: time.Now().UTC(),
		Judges:    make(map[string]models.JudgeCalibration),
	}
	for _, scorer := range pool.Judges() {
		jc, err := Run(ctx, scorer, gold, th)
		if err != nil {
			return nil, err
		}
		report.Judges[scorer.ID()] = jc
	}
	return report, nil
}
