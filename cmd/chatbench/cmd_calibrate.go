package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/microsoft/chatbench/internal/calibration"
	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/dataset"
	"github.com/microsoft/chatbench/internal/judge"
	"github.com/microsoft/chatbench/internal/store"
)

var (
	calibrateGoldPath string
	calibrateOutDir   string
)

func newCalibrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate <chatbench.yaml>",
		Short: "Validate judges against the human-scored gold set",
		Long: `Score every gold-set item with every configured judge and measure
agreement with the human scores. Judges below the gate thresholds are
marked excluded; "chatbench judge" skips them automatically when the
calibration report is stored in the run directory.`,
		Args: cobra.ExactArgs(1),
		RunE: calibrateCommandE,
	}

	cmd.Flags().StringVarP(&calibrateGoldPath, "gold", "g", "", "Gold set CSV file (overrides config)")
	cmd.Flags().StringVarP(&calibrateOutDir, "out", "o", "", "Run directory to store the calibration report in")

	return cmd
}

func calibrateCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if len(cfg.Judges) == 0 {
		return fmt.Errorf("config: at least one judge is required for calibration")
	}

	goldPath := calibrateGoldPath
	if goldPath == "" {
		goldPath = cfg.Calibration.GoldSetPath
	}
	if goldPath == "" {
		return fmt.Errorf("no gold set: pass --gold or set calibration.gold_set in config")
	}

	gold, err := dataset.LoadGoldSet(goldPath)
	if err != nil {
		return fmt.Errorf("loading gold set: %w", err)
	}

	sem := semaphore.NewWeighted(int64(cfg.Judging.Concurrency))
	scorers := make([]judge.Scorer, len(cfg.Judges))
	for i, jc := range cfg.Judges {
		scorers[i] = judge.NewClient(jc, cfg.Judging, sem)
	}
	pool := judge.NewPool(scorers...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	th := calibration.FromConfig(cfg.Calibration)
	fmt.Printf("Calibrating %d judge(s) against %d gold item(s)\n", len(scorers), len(gold))
	fmt.Printf("Gate: pearson >= %.2f, mae <= %.2f, agreement(±1) >= %.2f\n\n",
		th.MinPearson, th.MaxMAE, th.MinAgreement)

	report, err := calibration.RunAll(ctx, pool, gold, th)
	if err != nil {
		return err
	}

	printCalibrationTable(report)

	if calibrateOutDir != "" {
		st, err := store.Open(calibrateOutDir)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.WriteCalibration(report); err != nil {
			return err
		}
		fmt.Printf("Calibration report saved to: %s\n", calibrateOutDir)
	}

	if excluded := report.Excluded(); len(excluded) > 0 {
		return &PartialResultError{
			Message: fmt.Sprintf("%d of %d judge(s) failed the calibration gate", len(excluded), len(cfg.Judges)),
		}
	}
	return nil
}
