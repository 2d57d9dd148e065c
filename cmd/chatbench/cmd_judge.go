package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/microsoft/chatbench/internal/blind"
	"github.com/microsoft/chatbench/internal/calibration"
	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/dataset"
	"github.com/microsoft/chatbench/internal/judge"
	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/scoring"
	"github.com/microsoft/chatbench/internal/store"
)

var (
	judgeConfigPath  string
	judgePromptsPath string
	judgeVerbose     bool
)

func newJudgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judge <run-dir>",
		Short: "Score captured responses with the judge pool",
		Long: `Run the judging phase over a completed capture: every evaluable
response is anonymized, scored on its prompt's dimensions by every
calibrated judge, and the verdicts are persisted next to the records.

Judges that failed the calibration gate are skipped. Run
"chatbench calibrate" first to produce the gate results.`,
		Args: cobra.ExactArgs(1),
		RunE: judgeCommandE,
	}

	cmd.Flags().StringVarP(&judgeConfigPath, "config", "c", "chatbench.yaml", "Benchmark configuration file")
	cmd.Flags().StringVarP(&judgePromptsPath, "prompts", "p", "prompts.csv", "Prompt corpus CSV file")
	cmd.Flags().BoolVarP(&judgeVerbose, "verbose", "v", false, "Verbose output with per-verdict progress")

	return cmd
}

func judgeCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(judgeConfigPath)
	if err != nil {
		return err
	}
	if len(cfg.Judges) == 0 {
		return fmt.Errorf("config: at least one judge is required for judging")
	}

	prompts, err := dataset.LoadPrompts(judgePromptsPath)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}
	promptByID := make(map[string]*models.Prompt, len(prompts))
	for i := range prompts {
		promptByID[prompts[i].ID] = &prompts[i]
	}

	st, err := store.Open(args[0])
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	records, err := st.Records()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records in %s; run \"chatbench run\" first", args[0])
	}

	runID := args[0]
	if manifest, merr := st.ReadManifest(); merr == nil {
		runID = manifest.RunID
	} else {
		runID = filepath.Base(runID)
	}
	anonText, positions := anonymizeRecords(records, runID)

	pool, excluded, err := buildJudgePool(cfg, st)
	if err != nil {
		return err
	}
	for _, id := range excluded {
		fmt.Printf("Skipping judge %s: failed calibration gate\n", id)
	}

	// Resume support: a verdict that already exists is not re-requested.
	existing, err := st.Scores()
	if err != nil {
		return err
	}
	type verdictKey struct {
		pair    models.PairKey
		judgeID string
		dim     models.Dimension
	}
	done := make(map[verdictKey]bool, len(existing))
	for i := range existing {
		s := &existing[i]
		done[verdictKey{
			pair:    models.PairKey{PromptID: s.PromptID, TargetID: s.TargetID},
			judgeID: s.JudgeID,
			dim:     s.Dimension,
		}] = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scored, unscorable, skipped int
	for i := range records {
		r := &records[i]
		if !r.Evaluable() {
			skipped++
			continue
		}
		prompt, ok := promptByID[r.PromptID]
		if !ok {
			return fmt.Errorf("record %s references unknown prompt", r.Key())
		}

		dims := pendingDimensions(prompt.Dimensions, pool, func(judgeID string, dim models.Dimension) bool {
			return done[verdictKey{pair: r.Key(), judgeID: judgeID, dim: dim}]
		})
		if len(dims) == 0 {
			continue
		}

		base := judge.Request{
			PromptID:   r.PromptID,
			TargetID:   r.TargetID,
			PromptText: prompt.Text,
			Context:    prompt.ContextText,
			Response:   anonText[r.Key()],
		}

		verdicts, err := pool.ScoreRecord(ctx, base, dims)
		for j := range verdicts {
			v := &verdicts[j]
			if appendErr := st.AppendScore(v); appendErr != nil {
				return appendErr
			}
			if v.Unscorable {
				unscorable++
			} else {
				scored++
			}
			if judgeVerbose {
				printVerdict(v)
			}
		}
		if err != nil {
			return fmt.Errorf("judging %s: %w", r.Key(), err)
		}
		if !judgeVerbose {
			fmt.Printf("✓ [%d/%d] %s\n", i+1, len(records), r.Key())
		}
	}

	scores, err := st.Scores()
	if err != nil {
		return err
	}
	scores = dropExcludedScores(scores, excluded)

	aggregates := scoring.AggregateAll(records, scores, scoringOptions(cfg))
	if err := st.WriteAggregates(aggregates); err != nil {
		return err
	}

	fmt.Printf("\nVerdicts: %d scored, %d unscorable, %d record(s) not evaluable\n",
		scored, unscorable, skipped)

	if n := countReviewFlags(scores); n > 0 {
		fmt.Printf("⚠ %d verdict group(s) flagged for manual review: judge agreement below %.0f%%\n",
			n, blind.DefaultReviewThreshold*100)
	}
	if finding := calibration.DetectVerbosityBias(records, scores); finding != nil {
		fmt.Printf("⚠ Bias warning [%s]: %s\n", finding.Kind, finding.Detail)
	}
	if finding := calibration.DetectPositionBias(positionSamples(positions, scores)); finding != nil {
		fmt.Printf("⚠ Bias warning [%s]: %s\n", finding.Kind, finding.Detail)
	}

	if unscorable > 0 {
		return &PartialResultError{
			Message: fmt.Sprintf("judging completed with %d unscorable verdict(s)", unscorable),
		}
	}
	return nil
}

// scoringOptions maps the config's scoring section onto the
// aggregation engine. Judge and report must use the same options or
// the printed report drifts from the stored aggregates.
func scoringOptions(cfg *config.Config) scoring.Options {
	return scoring.Options{
		TrimFraction:  cfg.Scoring.TrimFraction,
		MaxLatencySec: cfg.Scoring.MaxLatencySec,
	}
}

// buildJudgePool constructs the pool from configuration, excluding
// judges gated out by a stored calibration report. No report means no
// exclusions.
func buildJudgePool(cfg *config.Config, st *store.Store) (*judge.Pool, []string, error) {
	gated := map[string]bool{}
	var excluded []string
	if report, err := st.ReadCalibration(); err == nil {
		for _, id := range report.Excluded() {
			gated[id] = true
		}
	}

	sem := semaphore.NewWeighted(int64(cfg.Judging.Concurrency))
	var scorers []judge.Scorer
	for _, jc := range cfg.Judges {
		if gated[jc.ID] {
			excluded = append(excluded, jc.ID)
			continue
		}
		scorers = append(scorers, judge.NewClient(jc, cfg.Judging, sem))
	}
	if len(scorers) == 0 {
		return nil, excluded, fmt.Errorf("%w: every configured judge failed the calibration gate", models.ErrCalibrationGate)
	}
	return judge.NewPool(scorers...), excluded, nil
}

// pendingDimensions returns the prompt's judgeable dimensions that
// still lack a verdict from at least one pooled judge.
func pendingDimensions(dims []models.Dimension, pool *judge.Pool, have func(judgeID string, dim models.Dimension) bool) []models.Dimension {
	var out []models.Dimension
	for _, dim := range dims {
		if !judge.Judgeable(dim) {
			continue
		}
		pending := false
		for _, j := range pool.Judges() {
			if !have(j.ID(), dim) {
				pending = true
				break
			}
		}
		if pending {
			out = append(out, dim)
		}
	}
	return out
}

func dropExcludedScores(scores []models.DimensionScore, excluded []string) []models.DimensionScore {
	if len(excluded) == 0 {
		return scores
	}
	gated := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		gated[id] = true
	}
	kept := scores[:0]
	for _, s := range scores {
		if !gated[s.JudgeID] {
			kept = append(kept, s)
		}
	}
	return kept
}

// anonymizeRecords builds one blind batch per prompt from the evaluable
// records and returns the stripped, label-shuffled text per pair plus
// each pair's presentation position. Shuffle seeds derive from the run
// ID so a resumed run reproduces the same labels.
func anonymizeRecords(records []models.ResponseRecord, runID string) (map[models.PairKey]string, map[models.PairKey]int) {
	byPrompt := map[string]map[string]string{}
	for i := range records {
		r := &records[i]
		if !r.Evaluable() {
			continue
		}
		if byPrompt[r.PromptID] == nil {
			byPrompt[r.PromptID] = map[string]string{}
		}
		byPrompt[r.PromptID][r.TargetID] = r.Text
	}

	anonText := make(map[models.PairKey]string)
	positions := make(map[models.PairKey]int)
	for promptID, responses := range byPrompt {
		batch := blind.NewBatch(promptID, responses, batchSeed(runID, promptID))
		for pos, entry := range batch.Entries {
			targetID, ok := batch.Reveal(entry.Label)
			if !ok {
				continue
			}
			key := models.PairKey{PromptID: promptID, TargetID: targetID}
			anonText[key] = entry.Text
			positions[key] = pos
		}
	}
	return anonText, positions
}

func batchSeed(runID, promptID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(runID))    //nolint:errcheck
	h.Write([]byte{0})        //nolint:errcheck
	h.Write([]byte(promptID)) //nolint:errcheck
	return int64(h.Sum64())
}

// countReviewFlags combines each pair+dimension's verdicts into an
// ensemble and counts the groups whose judges disagree enough to need a
// human look.
func countReviewFlags(scores []models.DimensionScore) int {
	type group struct {
		pair models.PairKey
		dim  models.Dimension
	}
	byGroup := map[group][]int{}
	for i := range scores {
		s := &scores[i]
		if !s.Valid() {
			continue
		}
		g := group{pair: models.PairKey{PromptID: s.PromptID, TargetID: s.TargetID}, dim: s.Dimension}
		byGroup[g] = append(byGroup[g], s.Score)
	}

	flagged := 0
	for _, vals := range byGroup {
		if len(vals) < 2 {
			continue
		}
		if blind.Ensemble(vals, blind.DefaultReviewThreshold).NeedsReview {
			flagged++
		}
	}
	return flagged
}

// positionSamples pairs each response's batch position with its mean
// valid judge score.
func positionSamples(positions map[models.PairKey]int, scores []models.DimensionScore) []calibration.PositionSample {
	sums := map[models.PairKey]float64{}
	counts := map[models.PairKey]int{}
	for i := range scores {
		s := &scores[i]
		if !s.Valid() {
			continue
		}
		key := models.PairKey{PromptID: s.PromptID, TargetID: s.TargetID}
		sums[key] += float64(s.Score)
		counts[key]++
	}

	var samples []calibration.PositionSample
	for key, pos := range positions {
		if counts[key] == 0 {
			continue
		}
		samples = append(samples, calibration.PositionSample{
			BatchID:  key.PromptID,
			Position: pos,
			Score:    sums[key] / float64(counts[key]),
		})
	}
	return samples
}

func printVerdict(v *models.DimensionScore) {
	if v.Unscorable {
		fmt.Printf("  [VERDICT] ✗ %s/%s %s: unscorable: %s\n",
			v.PromptID, v.TargetID, v.Dimension, v.UnscorableReason)
		return
	}
	fmt.Printf("  [VERDICT] ✓ %s/%s %s: %d (%s)\n",
		v.PromptID, v.TargetID, v.Dimension, v.Score, v.JudgeID)
}
