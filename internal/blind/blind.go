// Package blind prepares responses for judging without revealing which
// chatbot produced them: identifying artifacts are stripped, responses
// are presented under shuffled anonymous labels, and multi-judge
// verdicts are combined by median with an agreement check.
package blind

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
)

// rule rewrites one identifying artifact out of a response.
type rule struct {
	pattern *regexp.Regexp
	replace string
}

// genericRules apply to every target.
var genericRules = []rule{
	// Citation footnote markup some assistants embed in answers.
	{regexp.MustCompile(`【[^】]*】`), ""},
	{regexp.MustCompile(`\[\^?\d+\^?\]`), ""},
	// Trailing "was this helpful" style closings.
	{regexp.MustCompile(`(?i)\n+(is there anything else|let me know if|hope (this|that) helps)[^\n]*$`), ""},
}

// targetRules strip artifacts specific to one chatbot's house style,
// chiefly self-naming.
var targetRules = map[string][]rule{
	"copilot": {
		{regexp.MustCompile(`(?i)\b(microsoft )?copilot\b`), "the assistant"},
	},
	"chatgpt": {
		{regexp.MustCompile(`(?i)\bchatgpt\b`), "the assistant"},
		{regexp.MustCompile(`(?i)\bopenai\b`), "the provider"},
	},
	"gemini": {
		{regexp.MustCompile(`(?i)\bgemini\b`), "the assistant"},
		{regexp.MustCompile(`(?i)\bgoogle (ai|assistant)\b`), "the provider"},
	},
	"claude": {
		{regexp.MustCompile(`(?i)\bclaude\b`), "the assistant"},
		{regexp.MustCompile(`(?i)\banthropic\b`), "the provider"},
	},
}

// Strip removes target-identifying artifacts from a response. It is
// deterministic: the same input always yields the same output, so
// stripping commutes with label shuffling.
func Strip(text, targetID string) string {
	out := text
	for _, r := range targetRules[strings.ToLower(targetID)] {
		out = r.pattern.ReplaceAllString(out, r.replace)
	}
	for _, r := range genericRules {
		out = r.pattern.ReplaceAllString(out, r.replace)
	}
	return strings.TrimSpace(out)
}

// Entry is one anonymized response inside a batch.
type Entry struct {
	Label string
	Text  string
}

// Batch holds one prompt's responses under shuffled anonymous labels.
// The label-to-target mapping never leaves the struct except through
// Reveal, which judges must not call.
type Batch struct {
	PromptID string
	Entries  []Entry

	mapping map[string]string // label -> target ID
}

// NewBatch anonymizes the responses for one prompt. Label order is
// shuffled with the given seed so position assignments differ between
// prompts but stay reproducible for a run.
func NewBatch(promptID string, responses map[string]string, seed int64) Batch {
	targetIDs := make([]string, 0, len(responses))
	for id := range responses {
		targetIDs = append(targetIDs, id)
	}
	sort.Strings(targetIDs)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(targetIDs), func(i, j int) {
		targetIDs[i], targetIDs[j] = targetIDs[j], targetIDs[i]
	})

	b := Batch{
		PromptID: promptID,
		mapping:  make(map[string]string, len(targetIDs)),
	}
	for i, id := range targetIDs {
		label := fmt.Sprintf("Response %c", 'A'+i)
		b.mapping[label] = id
		b.Entries = append(b.Entries, Entry{
			Label: label,
			Text:  Strip(responses[id], id),
		})
	}
	return b
}

// Reveal maps an anonymous label back to its target ID. Only score
// attribution after judging may use this.
func (b *Batch) Reveal(label string) (string, bool) {
	id, ok := b.mapping[label]
	return id, ok
}

// FirstLabelTarget returns the target shown first in this batch, for
// position bias analysis.
func (b *Batch) FirstLabelTarget() string {
	if len(b.Entries) == 0 {
		return ""
	}
	return b.mapping[b.Entries[0].Label]
}

// EnsembleResult combines several judges' verdicts on one dimension.
type EnsembleResult struct {
	Median      float64 `json:"median"`
	Agreement   float64 `json:"agreement_within_1"`
	NeedsReview bool    `json:"needs_review"`
}

// DefaultReviewThreshold flags an ensemble when fewer than this
// fraction of judge pairs agree within one point.
const DefaultReviewThreshold = 0.5

// Ensemble reduces multiple judge scores to a median verdict plus a
// pairwise agreement rate. Fewer than two scores always agree.
func Ensemble(scores []int, reviewThreshold float64) EnsembleResult {
	if len(scores) == 0 {
		return EnsembleResult{NeedsReview: true}
	}

	sorted := make([]int, len(scores))
	copy(sorted, scores)
	sort.Ints(sorted)

	var med float64
	n := len(sorted)
	if n%2 == 1 {
		med = float64(sorted[n/2])
	} else {
		med = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	agreement := 1.0
	if n >= 2 {
		pairs, hits := 0, 0
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs++
				diff := sorted[i] - sorted[j]
				if diff < 0 {
					diff = -diff
				}
				if diff <= 1 {
					hits++
				}
			}
		}
		agreement = float64(hits) / float64(pairs)
	}

	return EnsembleResult{
		Median:      med,
		Agreement:   agreement,
		NeedsReview: agreement < reviewThreshold,
	}
}
