package scoring

import (
	"hash/fnv"
	"math"
	"sort"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/statistics"
)

const (
	// DefaultTrimFraction is the fraction trimmed from each end before
	// taking the median of per-prompt dimension scores.
	DefaultTrimFraction = 0.10

	// minTrimSamples is the sample count below which trimming is skipped
	// and a plain median is used instead.
	minTrimSamples = 5

	// geoFloor keeps the normalized score strictly positive so the
	// geometric mean collapses toward the minimum without hitting zero.
	geoFloor = 0.01
)

// TrimmedMedian returns the median of values after dropping
// floor(n*trim) values from each end of the sorted slice. With fewer
// than five samples no trimming happens. The trim count is capped so
// at least one value always survives. Returns NaN for empty input.
func TrimmedMedian(values []float64, trim float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n >= minTrimSamples && trim > 0 {
		k := int(math.Floor(float64(n) * trim))
		if k > (n-1)/2 {
			k = (n - 1) / 2
		}
		sorted = sorted[k : n-k]
	}

	return median(sorted)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// LatencyScore maps a latency in seconds to the 1..5 scale using a
// logarithmic curve anchored at the slowest acceptable latency tMax.
// Zero latency scores exactly 5; latencies at or beyond tMax score 1.
func LatencyScore(latencySec, tMaxSec float64) float64 {
	if latencySec <= 0 {
		return float64(models.MaxScore)
	}
	if tMaxSec <= 0 {
		return float64(models.MinScore)
	}
	score := 5 - 4*math.Log(latencySec+1)/math.Log(tMaxSec+1)
	return math.Max(float64(models.MinScore), score)
}

// Overall combines per-dimension scores (1..5 scale) into one overall
// score via a weighted geometric mean. Weights come from
// models.DimensionWeights and are renormalized over the dimensions
// actually present, so a missing dimension is absent rather than
// counted as zero. Returns NaN when no dimension is present.
func Overall(byDimension map[models.Dimension]float64) float64 {
	totalWeight := 0.0
	logSum := 0.0

	for dim, score := range byDimension {
		w, ok := models.DimensionWeights[dim]
		if !ok || math.IsNaN(score) {
			continue
		}
		normalized := (score - float64(models.MinScore)) / float64(models.MaxScore-models.MinScore)
		if normalized < geoFloor {
			normalized = geoFloor
		}
		logSum += w * math.Log(normalized)
		totalWeight += w
	}

	if totalWeight == 0 {
		return math.NaN()
	}

	geo := math.Exp(logSum / totalWeight)
	return float64(models.MinScore) + float64(models.MaxScore-models.MinScore)*geo
}

// Options control aggregation behavior. The latency anchor is the
// slowest observed latency in the comparison set; MaxLatencySec caps
// that anchor and stands in for it when nothing was observed.
type Options struct {
	TrimFraction  float64
	MaxLatencySec float64
}

// DefaultOptions returns the canonical aggregation settings.
func DefaultOptions() Options {
	return Options{
		TrimFraction:  DefaultTrimFraction,
		MaxLatencySec: 120,
	}
}

// AggregateTarget reduces one target's records and dimension scores to
// a TargetAggregate. It is a pure function: same inputs, same output.
// Only evaluable records contribute; unscorable dimension verdicts are
// skipped, never zero-filled. The latency dimension is derived from
// record latencies rather than judge verdicts, normalized against the
// slowest evaluable latency across every record passed in, so the
// anchor is shared by all targets of one comparison.
func AggregateTarget(targetID string, records []models.ResponseRecord, scores []models.DimensionScore, opts Options) models.TargetAggregate {
	agg := models.TargetAggregate{
		TargetID:    targetID,
		ByDimension: make(map[models.Dimension]float64),
	}

	evaluable := make(map[models.PairKey]bool)
	for i := range records {
		r := &records[i]
		if r.TargetID != targetID {
			continue
		}
		if r.Evaluable() {
			evaluable[r.Key()] = true
			agg.Evaluated++
		} else {
			agg.NotEvaluable++
		}
	}

	if agg.Evaluated == 0 {
		agg.Overall = math.NaN()
		return agg
	}

	byDim := make(map[models.Dimension][]float64)
	byPair := make(map[models.PairKey][]float64)
	for i := range scores {
		s := &scores[i]
		if s.TargetID != targetID || !s.Valid() {
			continue
		}
		key := models.PairKey{PromptID: s.PromptID, TargetID: s.TargetID}
		if !evaluable[key] {
			continue
		}
		byDim[s.Dimension] = append(byDim[s.Dimension], float64(s.Score))
		byPair[key] = append(byPair[key], float64(s.Score))
	}

	tMax := maxObservedLatency(records)
	if tMax <= 0 || (opts.MaxLatencySec > 0 && tMax > opts.MaxLatencySec) {
		tMax = opts.MaxLatencySec
	}
	for i := range records {
		r := &records[i]
		if r.TargetID != targetID || !r.Evaluable() {
			continue
		}
		byDim[models.DimLatency] = append(byDim[models.DimLatency], LatencyScore(r.LatencySec, tMax))
	}

	for dim, values := range byDim {
		agg.ByDimension[dim] = TrimmedMedian(values, opts.TrimFraction)
	}

	agg.Overall = Overall(agg.ByDimension)
	agg.OverallCI = overallCI(targetID, byPair)
	return agg
}

// maxObservedLatency returns the slowest evaluable latency in the
// comparison set, or zero when nothing succeeded.
func maxObservedLatency(records []models.ResponseRecord) float64 {
	maxSec := 0.0
	for i := range records {
		r := &records[i]
		if r.Evaluable() && r.LatencySec > maxSec {
			maxSec = r.LatencySec
		}
	}
	return maxSec
}

// overallCI bootstraps a confidence interval over per-prompt mean judge
// scores. The resample seed derives from the target ID so recomputing
// from the same verdicts is bit-identical. Returns nil with fewer than
// two scored prompts.
func overallCI(targetID string, byPair map[models.PairKey][]float64) *statistics.ConfidenceInterval {
	keys := make([]models.PairKey, 0, len(byPair))
	for k := range byPair {
		keys = append(keys, k)
	}
	if len(keys) < 2 {
		return nil
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].PromptID < keys[j].PromptID })

	samples := make([]float64, 0, len(keys))
	for _, k := range keys {
		sum := 0.0
		for _, v := range byPair[k] {
			sum += v
		}
		samples = append(samples, sum/float64(len(byPair[k])))
	}

	h := fnv.New64a()
	h.Write([]byte(targetID)) //nolint:errcheck
	seed := int64(h.Sum64() & math.MaxInt64)

	ci := statistics.BootstrapCIWithSeed(samples, 0.95, seed)
	return &ci
}

// AggregateAll runs AggregateTarget for every target seen in records,
// returning aggregates keyed by target ID.
func AggregateAll(records []models.ResponseRecord, scores []models.DimensionScore, opts Options) map[string]models.TargetAggregate {
	targets := make(map[string]bool)
	for i := range records {
		targets[records[i].TargetID] = true
	}

	out := make(map[string]models.TargetAggregate, len(targets))
	for id := range targets {
		out[id] = AggregateTarget(id, records, scores, opts)
	}
	return out
}
