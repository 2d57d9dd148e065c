package models

import (
	"fmt"
	"time"

	"github.com/microsoft/chatbench/internal/statistics"
)

// Status represents the terminal outcome of one prompt/target submission.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusTimeout  Status = "timeout"
	StatusDetected Status = "detected"
	StatusError    Status = "error"
)

// Dimension identifies one axis of response quality.
type Dimension string

const (
	DimFactuality  Dimension = "factuality"
	DimHelpfulness Dimension = "helpfulness"
	DimSafety      Dimension = "safety"
	DimRobustness  Dimension = "robustness"
	DimLatency     Dimension = "latency"
	DimFormatting  Dimension = "formatting"
	DimMemory      Dimension = "memory"
)

// DimensionWeights are the fixed weights used for the overall score.
// They sum to 1.0 over the full dimension set; when a record is missing
// dimensions the remaining weights are renormalized.
var DimensionWeights = map[Dimension]float64{
	DimFactuality:  0.20,
	DimHelpfulness: 0.20,
	DimSafety:      0.15,
	DimRobustness:  0.10,
	DimLatency:     0.10,
	DimFormatting:  0.15,
	DimMemory:      0.10,
}

// AllDimensions lists every dimension in report order.
var AllDimensions = []Dimension{
	DimFactuality,
	DimHelpfulness,
	DimSafety,
	DimRobustness,
	DimLatency,
	DimFormatting,
	DimMemory,
}

// IsKnownDimension reports whether d is one of the defined dimensions.
func IsKnownDimension(d Dimension) bool {
	_, ok := DimensionWeights[d]
	return ok
}

// Prompt is one immutable test case from the prompt corpus.
type Prompt struct {
	ID          string      `json:"id"`
	Intent      string      `json:"intent"`
	Text        string      `json:"prompt"`
	Complexity  int         `json:"complexity"`
	ContextText string      `json:"context_text,omitempty"`
	ContextURL  string      `json:"context_url,omitempty"`
	Dimensions  []Dimension `json:"dimensions"`
}

// PairKey identifies one (prompt, target) evaluation pair.
type PairKey struct {
	PromptID string `json:"prompt_id"`
	TargetID string `json:"target_id"`
}

func (k PairKey) String() string {
	return k.PromptID + "/" + k.TargetID
}

// ResponseRecord is the terminal record of one submission attempt chain.
// Exactly one record exists per pair once the pair reaches a terminal
// state, and the record is never mutated afterwards.
type ResponseRecord struct {
	PromptID        string    `json:"prompt_id"`
	TargetID        string    `json:"target_id"`
	Text            string    `json:"text"`
	Screenshots     []string  `json:"screenshots,omitempty"`
	LatencySec      float64   `json:"latency_sec"`
	Status          Status    `json:"status"`
	DetectionEvents int       `json:"detection_events"`
	RetryCount      int       `json:"retry_count"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	CapturedAt      time.Time `json:"captured_at"`
}

// Key returns the pair key for this record.
func (r *ResponseRecord) Key() PairKey {
	return PairKey{PromptID: r.PromptID, TargetID: r.TargetID}
}

// Evaluable reports whether the record may enter judging and aggregation.
// Only successful captures are evaluable; failed pairs are reported as
// non-evaluable, never scored.
func (r *ResponseRecord) Evaluable() bool {
	return r.Status == StatusSuccess
}

// DimensionScore is one judge's verdict on one dimension of one record.
type DimensionScore struct {
	PromptID         string    `json:"prompt_id"`
	TargetID         string    `json:"target_id"`
	Dimension        Dimension `json:"dimension"`
	Score            int       `json:"score"`
	Reasoning        string    `json:"reasoning"`
	Evidence         string    `json:"evidence,omitempty"`
	JudgeID          string    `json:"judge_id"`
	Unscorable       bool      `json:"unscorable,omitempty"`
	UnscorableReason string    `json:"unscorable_reason,omitempty"`
}

// Valid reports whether the score is a usable integer verdict.
func (s *DimensionScore) Valid() bool {
	return !s.Unscorable && s.Score >= MinScore && s.Score <= MaxScore
}

// Score bounds for every dimension verdict.
const (
	MinScore = 1
	MaxScore = 5
)

// TargetAggregate is the per-target result of the aggregation engine:
// a trimmed statistic per dimension plus the weighted overall.
type TargetAggregate struct {
	TargetID     string                         `json:"target_id"`
	ByDimension  map[Dimension]float64          `json:"by_dimension"`
	Overall      float64                        `json:"overall"`
	OverallCI    *statistics.ConfidenceInterval `json:"overall_ci,omitempty"`
	Evaluated    int                            `json:"evaluated"`
	NotEvaluable int                            `json:"not_evaluable"`
}

// GoldSetItem is one human-scored calibration example.
type GoldSetItem struct {
	Prompt     string    `json:"prompt"`
	Context    string    `json:"context,omitempty"`
	Response   string    `json:"response"`
	Dimension  Dimension `json:"dimension"`
	HumanScore int       `json:"human_score"`
}

// JudgeCalibration summarizes one judge's agreement with the gold set.
type JudgeCalibration struct {
	JudgeID   string  `json:"judge_id"`
	Pearson   float64 `json:"pearson"`
	Spearman  float64 `json:"spearman"`
	MAE       float64 `json:"mae"`
	Bias      float64 `json:"bias"`
	Agreement float64 `json:"agreement_within_1"`
	N         int     `json:"n"`
	Passed    bool    `json:"passed"`
}

// CalibrationReport maps judge IDs to their calibration results.
type CalibrationReport struct {
	Timestamp time.Time                   `json:"timestamp"`
	Judges    map[string]JudgeCalibration `json:"judges"`
}

// Excluded returns the IDs of judges that failed the calibration gate.
func (r *CalibrationReport) Excluded() []string {
	var out []string
	for id, jc := range r.Judges {
		if !jc.Passed {
			out = append(out, id)
		}
	}
	return out
}

// RunManifest records the identity and inputs of one benchmark run.
type RunManifest struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Prompts   int       `json:"prompts"`
	Targets   []string  `json:"targets"`
}

func (m *RunManifest) String() string {
	return fmt.Sprintf("run %s: %d prompt(s) x %d target(s)", m.RunID, m.Prompts, len(m.Targets))
}
