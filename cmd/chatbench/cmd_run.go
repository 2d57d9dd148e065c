package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/dataset"
	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/orchestration"
	"github.com/microsoft/chatbench/internal/store"
	"github.com/microsoft/chatbench/internal/targets"
	"github.com/microsoft/chatbench/internal/utils"
)

var (
	runPromptsPath   string
	runOutputDir     string
	runVerbose       bool
	runPromptFilters []string
	runWorkers       int
	runUseMock       bool
	runResumeDir     string
	runHeadful       bool
	runRowStart      int
	runRowEnd        int
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <chatbench.yaml>",
		Short: "Capture chatbot responses for the prompt corpus",
		Long: `Run the capture phase: submit every prompt in the corpus to every
configured target through a stealth browser session and persist the
responses incrementally under the run directory.

Judging and reporting are separate phases; see "chatbench judge" and
"chatbench report".`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&runPromptsPath, "prompts", "p", "prompts.csv", "Prompt corpus CSV file")
	cmd.Flags().StringVarP(&runOutputDir, "out", "o", "", "Run directory (default: <output_dir>/<run-id>)")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose output with detailed progress")
	cmd.Flags().StringArrayVar(&runPromptFilters, "prompt", nil, "Filter prompts by id/intent glob pattern (can be repeated)")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "Number of targets submitting concurrently (overrides config)")
	cmd.Flags().BoolVar(&runUseMock, "mock", false, "Use mock targets instead of live browser sessions")
	cmd.Flags().StringVar(&runResumeDir, "resume", "", "Resume an interrupted run from its run directory")
	cmd.Flags().BoolVar(&runHeadful, "headful", false, "Run browsers with a visible window")
	cmd.Flags().IntVar(&runRowStart, "row-start", 0, "First corpus data row to run (1-based, inclusive)")
	cmd.Flags().IntVar(&runRowEnd, "row-end", 0, "Last corpus data row to run (inclusive, requires --row-start)")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if runWorkers > 0 {
		cfg.Run.Workers = runWorkers
	}
	if runHeadful {
		cfg.Browser.Headless = utils.Ptr(false)
	}

	var prompts []models.Prompt
	if runRowStart > 0 {
		end := runRowEnd
		if end == 0 {
			end = int(^uint(0) >> 1)
		}
		prompts, err = dataset.LoadPromptsRange(runPromptsPath, runRowStart, end)
	} else {
		prompts, err = dataset.LoadPrompts(runPromptsPath)
	}
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}
	prompts, err = orchestration.FilterPrompts(prompts, runPromptFilters)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		return fmt.Errorf("no prompts matched")
	}

	runDir := runOutputDir
	runID := uuid.NewString()
	switch {
	case runResumeDir != "":
		runDir = runResumeDir
		runID = filepath.Base(runResumeDir)
	case runDir == "":
		runDir = filepath.Join(cfg.Run.OutputDir, runID)
	}

	st, err := store.Open(runDir)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	completed := map[models.PairKey]bool{}
	if runResumeDir != "" {
		completed, err = st.CompletedPairs()
		if err != nil {
			return err
		}
	}

	targetIDs := make([]string, len(cfg.Targets))
	for i, t := range cfg.Targets {
		targetIDs[i] = t.ID
	}
	manifest := &models.RunManifest{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Prompts:   len(prompts),
		Targets:   targetIDs,
	}
	if err := st.WriteManifest(manifest); err != nil {
		return err
	}

	// Capture SIGINT so an interrupted run still has every finalized
	// pair on disk and can be resumed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runners, err := buildRunners(ctx, cfg)
	if err != nil {
		return err
	}

	runner := orchestration.NewRunner(runners, st,
		orchestration.WithWorkers(cfg.Run.Workers),
		orchestration.WithScreenshotDir(cfg.Run.ScreenshotDir),
		orchestration.WithPacing(
			time.Duration(cfg.Run.PromptDelayMinSec)*time.Second,
			time.Duration(cfg.Run.PromptDelayMaxSec)*time.Second,
		),
		orchestration.WithCompleted(completed),
	)
	if runVerbose {
		runner.OnProgress(verboseProgressListener)
	} else {
		runner.OnProgress(simpleProgressListener)
	}

	fmt.Printf("Run: %s\n", manifest)
	fmt.Printf("Output: %s\n", runDir)
	if runUseMock {
		fmt.Println("Targets: mock")
	}
	fmt.Println()

	records, runErr := runner.Run(ctx, prompts)
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	printCaptureSummary(records)
	if ctx.Err() != nil {
		fmt.Printf("Interrupted; resume with: chatbench run %s --resume %s\n", args[0], runDir)
		return nil
	}

	if n := countNotEvaluable(records); n > 0 {
		return &PartialResultError{
			Message: fmt.Sprintf("capture completed with %d non-evaluable pair(s)", n),
		}
	}
	return nil
}

func buildRunners(ctx context.Context, cfg *config.Config) ([]targets.Runner, error) {
	runners := make([]targets.Runner, 0, len(cfg.Targets))
	for _, tc := range cfg.Targets {
		if runUseMock {
			runners = append(runners, targets.NewMockRunner(tc.ID))
			continue
		}

		adapter, err := targets.New(tc)
		if err != nil {
			return nil, err
		}
		lr, err := targets.NewLiveRunner(ctx, adapter, cfg.Browser, cfg.Run.MaxScreenshots)
		if err != nil {
			for _, r := range runners {
				r.Close()
			}
			return nil, fmt.Errorf("launching session for %s: %w", tc.ID, err)
		}
		runners = append(runners, lr)
	}
	return runners, nil
}

func countNotEvaluable(records []models.ResponseRecord) int {
	n := 0
	for i := range records {
		if !records[i].Evaluable() {
			n++
		}
	}
	return n
}
