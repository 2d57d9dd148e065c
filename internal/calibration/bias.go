package calibration

import (
	"fmt"
	"math"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/statistics"
)

const (
	// VerbosityBiasThreshold flags a run when |correlation| between
	// response length and score exceeds it.
	VerbosityBiasThreshold = 0.3

	// PositionBiasThreshold flags a run when first-position responses
	// exceed their own batch's mean by more than this many points,
	// averaged across batches.
	PositionBiasThreshold = 0.3
)

// Finding is one bias recommendation surfaced to the report. Findings
// never alter scores.
type Finding struct {
	Kind   string  `json:"kind"`
	Value  float64 `json:"value"`
	Detail string  `json:"detail"`
}

// DetectVerbosityBias correlates response length with the mean valid
// judge score per record. Returns nil when no bias is indicated or
// there is too little data to tell.
func DetectVerbosityBias(records []models.ResponseRecord, scores []models.DimensionScore) *Finding {
	meanByPair := make(map[models.PairKey]*struct {
		sum float64
		n   int
	})
	for i := range scores {
		s := &scores[i]
		if !s.Valid() {
			continue
		}
		key := models.PairKey{PromptID: s.PromptID, TargetID: s.TargetID}
		agg := meanByPair[key]
		if agg == nil {
			agg = &struct {
				sum float64
				n   int
			}{}
			meanByPair[key] = agg
		}
		agg.sum += float64(s.Score)
		agg.n++
	}

	var lengths, means []float64
	for i := range records {
		r := &records[i]
		agg := meanByPair[r.Key()]
		if agg == nil || agg.n == 0 || !r.Evaluable() {
			continue
		}
		lengths = append(lengths, float64(len(r.Text)))
		means = append(means, agg.sum/float64(agg.n))
	}

	r := statistics.Pearson(lengths, means)
	if math.IsNaN(r) || math.Abs(r) <= VerbosityBiasThreshold {
		return nil
	}

	direction := "longer"
	if r < 0 {
		direction = "shorter"
	}
	return &Finding{
		Kind:   "verbosity_bias",
		Value:  r,
		Detail: fmt.Sprintf("scores correlate with response length (r=%.2f): %s responses score higher; consider length-controlled re-judging", r, direction),
	}
}

// PositionSample pairs a response's presentation position in its blind
// batch with the score it received. BatchID groups the responses that
// were shown together, one batch per prompt.
type PositionSample struct {
	BatchID  string
	Position int
	Score    float64
}

// DetectPositionBias computes, per batch, the gap between the
// first-presented response and that batch's own mean, then averages
// the gaps. Batches without a first-position sample or with a single
// response cannot be compared and are skipped. Returns nil when no
// batch is comparable or the mean gap stays under the threshold.
func DetectPositionBias(samples []PositionSample) *Finding {
	type batchTally struct {
		first    float64
		hasFirst bool
		sum      float64
		n        int
	}
	batches := map[string]*batchTally{}
	for _, s := range samples {
		b := batches[s.BatchID]
		if b == nil {
			b = &batchTally{}
			batches[s.BatchID] = b
		}
		b.sum += s.Score
		b.n++
		if s.Position == 0 {
			b.first = s.Score
			b.hasFirst = true
		}
	}

	var gapSum float64
	comparable := 0
	for _, b := range batches {
		if !b.hasFirst || b.n < 2 {
			continue
		}
		gapSum += b.first - b.sum/float64(b.n)
		comparable++
	}
	if comparable == 0 {
		return nil
	}

	gap := gapSum / float64(comparable)
	if gap <= PositionBiasThreshold {
		return nil
	}
	return &Finding{
		Kind:   "position_bias",
		Value:  gap,
		Detail: fmt.Sprintf("first-presented responses score %.2f points above their batch mean; increase label shuffling or use pairwise swaps", gap),
	}
}
