package scoring

import (
	"math"
	"testing"

	"github.com/microsoft/chatbench/internal/models"
)

func TestTrimmedMedianSmallSampleUsesPlainMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"single value", []float64{3}, 3},
		{"two values", []float64{2, 4}, 3},
		{"three values", []float64{1, 5, 3}, 3},
		{"four values with outlier kept", []float64{1, 4, 4, 4}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimmedMedian(tt.values, DefaultTrimFraction)
			if got != tt.want {
				t.Errorf("TrimmedMedian(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestTrimmedMedianDropsOutliers(t *testing.T) {
	// Ten values, trim fraction 0.10: one dropped per end.
	values := []float64{1, 4, 4, 4, 4, 4, 4, 4, 4, 5}
	got := TrimmedMedian(values, DefaultTrimFraction)
	if got != 4 {
		t.Errorf("TrimmedMedian = %v, want 4", got)
	}
}

func TestTrimmedMedianBounds(t *testing.T) {
	// Result must stay within [min, max] of the raw input.
	values := []float64{2, 3, 3, 4, 4, 4, 5, 5, 5, 5, 1}
	got := TrimmedMedian(values, DefaultTrimFraction)
	if got < 1 || got > 5 {
		t.Errorf("TrimmedMedian = %v, outside input range [1, 5]", got)
	}
}

func TestTrimmedMedianAggressiveTrimKeepsCenter(t *testing.T) {
	// A trim fraction that would drop everything must cap at the center
	// value instead of slicing out of range.
	tests := []struct {
		name   string
		values []float64
		trim   float64
		want   float64
	}{
		{"over half on odd count", []float64{1, 2, 3, 4, 5}, 0.6, 3},
		{"over half on even count", []float64{1, 2, 3, 4, 5, 6}, 0.9, 3.5},
		{"just under half", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.45, 5.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimmedMedian(tt.values, tt.trim)
			if got != tt.want {
				t.Errorf("TrimmedMedian(%v, %v) = %v, want %v", tt.values, tt.trim, got, tt.want)
			}
		})
	}
}

func TestTrimmedMedianEmpty(t *testing.T) {
	if got := TrimmedMedian(nil, DefaultTrimFraction); !math.IsNaN(got) {
		t.Errorf("TrimmedMedian(nil) = %v, want NaN", got)
	}
}

func TestLatencyScoreZeroIsFive(t *testing.T) {
	if got := LatencyScore(0, 120); got != 5 {
		t.Errorf("LatencyScore(0) = %v, want 5", got)
	}
}

func TestLatencyScoreMonotonicallyDecreasing(t *testing.T) {
	prev := LatencyScore(0, 120)
	for _, sec := range []float64{0.5, 1, 2, 5, 10, 30, 60, 119} {
		got := LatencyScore(sec, 120)
		if got > prev {
			t.Errorf("LatencyScore(%v) = %v, exceeds score at lower latency %v", sec, got, prev)
		}
		prev = got
	}
}

func TestLatencyScoreFloorsAtOne(t *testing.T) {
	for _, sec := range []float64{120, 300, 10000} {
		if got := LatencyScore(sec, 120); got != 1 {
			t.Errorf("LatencyScore(%v) = %v, want floor of 1", sec, got)
		}
	}
}

func TestOverallMonotoneInEachDimension(t *testing.T) {
	base := map[models.Dimension]float64{
		models.DimFactuality:  3,
		models.DimHelpfulness: 3,
		models.DimSafety:      3,
		models.DimRobustness:  3,
		models.DimLatency:     3,
		models.DimFormatting:  3,
		models.DimMemory:      3,
	}
	baseline := Overall(base)

	for dim := range base {
		raised := make(map[models.Dimension]float64, len(base))
		for k, v := range base {
			raised[k] = v
		}
		raised[dim] = 4
		if got := Overall(raised); got <= baseline {
			t.Errorf("raising %s did not raise overall: %v <= %v", dim, got, baseline)
		}
	}
}

func TestOverallRenormalizesMissingDimensions(t *testing.T) {
	// All present dimensions equal: overall must equal that value
	// regardless of which dimensions are absent.
	partial := map[models.Dimension]float64{
		models.DimFactuality:  4,
		models.DimHelpfulness: 4,
		models.DimSafety:      4,
	}
	got := Overall(partial)
	if math.Abs(got-4) > 1e-9 {
		t.Errorf("Overall with uniform partial scores = %v, want 4", got)
	}
}

func TestOverallEmptyIsNaN(t *testing.T) {
	if got := Overall(nil); !math.IsNaN(got) {
		t.Errorf("Overall(nil) = %v, want NaN", got)
	}
}

func TestOverallLowScoreCollapsesTowardMinimum(t *testing.T) {
	scores := map[models.Dimension]float64{
		models.DimFactuality:  1,
		models.DimHelpfulness: 5,
		models.DimSafety:      5,
		models.DimRobustness:  5,
		models.DimLatency:     5,
		models.DimFormatting:  5,
		models.DimMemory:      5,
	}
	got := Overall(scores)
	arithmetic := 1*0.20 + 5*0.80
	if got >= arithmetic {
		t.Errorf("geometric overall %v should sit below arithmetic %v when one dimension craters", got, arithmetic)
	}
	if got < 1 {
		t.Errorf("overall %v fell below the scale minimum", got)
	}
}

func TestAggregateTargetSkipsNonEvaluableRecords(t *testing.T) {
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "chatgpt", Status: models.StatusSuccess, LatencySec: 2},
		{PromptID: "p2", TargetID: "chatgpt", Status: models.StatusDetected},
		{PromptID: "p3", TargetID: "chatgpt", Status: models.StatusTimeout},
	}
	scores := []models.DimensionScore{
		{PromptID: "p1", TargetID: "chatgpt", Dimension: models.DimFactuality, Score: 4},
		// Scores for a detected pair must not leak into the aggregate.
		{PromptID: "p2", TargetID: "chatgpt", Dimension: models.DimFactuality, Score: 1},
	}

	agg := AggregateTarget("chatgpt", records, scores, DefaultOptions())

	if agg.Evaluated != 1 || agg.NotEvaluable != 2 {
		t.Fatalf("evaluated=%d notEvaluable=%d, want 1 and 2", agg.Evaluated, agg.NotEvaluable)
	}
	if got := agg.ByDimension[models.DimFactuality]; got != 4 {
		t.Errorf("factuality = %v, want 4 (failed pair's score must be excluded)", got)
	}
}

func TestAggregateTargetAllFailedHasNoOverall(t *testing.T) {
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "gemini", Status: models.StatusDetected},
		{PromptID: "p2", TargetID: "gemini", Status: models.StatusTimeout},
	}
	agg := AggregateTarget("gemini", records, nil, DefaultOptions())
	if agg.Evaluated != 0 {
		t.Fatalf("evaluated = %d, want 0", agg.Evaluated)
	}
	if !math.IsNaN(agg.Overall) {
		t.Errorf("overall = %v, want NaN for a target with no evaluable records", agg.Overall)
	}
}

func TestAggregateTargetSkipsUnscorable(t *testing.T) {
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "claude", Status: models.StatusSuccess, LatencySec: 1},
	}
	scores := []models.DimensionScore{
		{PromptID: "p1", TargetID: "claude", Dimension: models.DimFactuality, Score: 5},
		{PromptID: "p1", TargetID: "claude", Dimension: models.DimSafety, Unscorable: true, UnscorableReason: "parse retries exhausted"},
	}

	agg := AggregateTarget("claude", records, scores, DefaultOptions())

	if _, ok := agg.ByDimension[models.DimSafety]; ok {
		t.Error("unscorable dimension must be absent from the aggregate, not zero-filled")
	}
	if got := agg.ByDimension[models.DimFactuality]; got != 5 {
		t.Errorf("factuality = %v, want 5", got)
	}
}

func TestAggregateTargetLatencyAnchoredToObservedMax(t *testing.T) {
	// Both targets share one latency anchor: the slowest evaluable
	// latency anywhere in the comparison set.
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "fast", Status: models.StatusSuccess, LatencySec: 2},
		{PromptID: "p1", TargetID: "slow", Status: models.StatusSuccess, LatencySec: 8},
	}

	opts := DefaultOptions()
	fast := AggregateTarget("fast", records, nil, opts)
	slow := AggregateTarget("slow", records, nil, opts)

	if got, want := fast.ByDimension[models.DimLatency], LatencyScore(2, 8); math.Abs(got-want) > 1e-9 {
		t.Errorf("fast latency = %v, want %v (anchored to the 8s observation)", got, want)
	}
	if got := slow.ByDimension[models.DimLatency]; got != 1 {
		t.Errorf("slowest observation = %v, want exactly 1", got)
	}
}

func TestAggregateTargetLatencyAnchorCappedByConfig(t *testing.T) {
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "fast", Status: models.StatusSuccess, LatencySec: 2},
		{PromptID: "p1", TargetID: "slow", Status: models.StatusSuccess, LatencySec: 600},
	}

	opts := DefaultOptions()
	opts.MaxLatencySec = 4

	fast := AggregateTarget("fast", records, nil, opts)
	if got, want := fast.ByDimension[models.DimLatency], LatencyScore(2, 4); math.Abs(got-want) > 1e-9 {
		t.Errorf("capped anchor latency = %v, want %v", got, want)
	}
}

func TestAggregateTargetIdempotent(t *testing.T) {
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "copilot", Status: models.StatusSuccess, LatencySec: 3},
		{PromptID: "p2", TargetID: "copilot", Status: models.StatusSuccess, LatencySec: 7},
	}
	scores := []models.DimensionScore{
		{PromptID: "p1", TargetID: "copilot", Dimension: models.DimHelpfulness, Score: 4},
		{PromptID: "p2", TargetID: "copilot", Dimension: models.DimHelpfulness, Score: 3},
	}

	first := AggregateTarget("copilot", records, scores, DefaultOptions())
	second := AggregateTarget("copilot", records, scores, DefaultOptions())

	if first.Overall != second.Overall {
		t.Errorf("overall changed across identical runs: %v vs %v", first.Overall, second.Overall)
	}
	for dim, v := range first.ByDimension {
		if second.ByDimension[dim] != v {
			t.Errorf("dimension %s changed across identical runs: %v vs %v", dim, v, second.ByDimension[dim])
		}
	}
	if first.OverallCI == nil || second.OverallCI == nil {
		t.Fatal("expected a confidence interval with two scored prompts")
	}
	if *first.OverallCI != *second.OverallCI {
		t.Errorf("confidence interval changed across identical runs: %+v vs %+v", *first.OverallCI, *second.OverallCI)
	}
}

func TestAggregateTargetConfidenceInterval(t *testing.T) {
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "chatgpt", Status: models.StatusSuccess, LatencySec: 2},
		{PromptID: "p2", TargetID: "chatgpt", Status: models.StatusSuccess, LatencySec: 4},
		{PromptID: "p3", TargetID: "chatgpt", Status: models.StatusSuccess, LatencySec: 3},
	}
	scores := []models.DimensionScore{
		{PromptID: "p1", TargetID: "chatgpt", Dimension: models.DimFactuality, Score: 4},
		{PromptID: "p2", TargetID: "chatgpt", Dimension: models.DimFactuality, Score: 3},
		{PromptID: "p3", TargetID: "chatgpt", Dimension: models.DimFactuality, Score: 5},
	}

	agg := AggregateTarget("chatgpt", records, scores, DefaultOptions())

	ci := agg.OverallCI
	if ci == nil {
		t.Fatal("expected a confidence interval")
	}
	if ci.Lower > ci.Mean || ci.Mean > ci.Upper {
		t.Errorf("interval [%v, %v] does not bracket the mean %v", ci.Lower, ci.Upper, ci.Mean)
	}
	if ci.Mean != 4 {
		t.Errorf("mean = %v, want 4", ci.Mean)
	}
}

func TestAggregateTargetSingleScoredPromptHasNoInterval(t *testing.T) {
	records := []models.ResponseRecord{
		{PromptID: "p1", TargetID: "gemini", Status: models.StatusSuccess, LatencySec: 2},
	}
	scores := []models.DimensionScore{
		{PromptID: "p1", TargetID: "gemini", Dimension: models.DimFactuality, Score: 4},
	}

	agg := AggregateTarget("gemini", records, scores, DefaultOptions())
	if agg.OverallCI != nil {
		t.Errorf("expected no interval from a single scored prompt, got %+v", *agg.OverallCI)
	}
}
