package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microsoft/chatbench/internal/calibration"
	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/reporting"
	"github.com/microsoft/chatbench/internal/scoring"
	"github.com/microsoft/chatbench/internal/store"
)

var (
	reportConfigPath string
	reportFormat     string
	reportOutput     string
	reportInterpret  bool
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <run-dir>",
		Short: "Build the comparison report for a judged run",
		Args:  cobra.ExactArgs(1),
		RunE:  reportCommandE,
	}

	cmd.Flags().StringVarP(&reportConfigPath, "config", "c", "chatbench.yaml", "Benchmark configuration file (scoring options must match the judge phase)")
	cmd.Flags().StringVar(&reportFormat, "format", "default", "Output format: default, json, csv")
	cmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write the report to a file instead of stdout summary")
	cmd.Flags().BoolVar(&reportInterpret, "interpret", false, "Print a plain-language interpretation of the results")

	return cmd
}

func reportCommandE(cmd *cobra.Command, args []string) error {
	// Aggregation must replay the judge phase's scoring options; a
	// missing config only falls back to defaults when it was not asked
	// for explicitly.
	opts := scoring.DefaultOptions()
	if cfg, err := config.Load(reportConfigPath); err == nil {
		opts = scoringOptions(cfg)
	} else if cmd.Flags().Changed("config") {
		return err
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
		return fmt.Errorf("no records in %s", args[0])
	}
	scores, err := st.Scores()
	if err != nil {
		return err
	}

	// Calibration is optional context; the report notes excluded judges
	// when a stored gate result exists.
	var cal *models.CalibrationReport
	if report, err := st.ReadCalibration(); err == nil {
		cal = report
		scores = dropExcludedScores(scores, report.Excluded())
	}

	aggregates := scoring.AggregateAll(records, scores, opts)

	var bias []calibration.Finding
	if finding := calibration.DetectVerbosityBias(records, scores); finding != nil {
		bias = append(bias, *finding)
	}

	aggList := make([]models.TargetAggregate, 0, len(aggregates))
	for _, agg := range aggregates {
		aggList = append(aggList, agg)
	}

	manifest, err := st.ReadManifest()
	if err != nil {
		manifest = &models.RunManifest{RunID: st.Dir()}
	}
	report := reporting.Build(manifest, records, aggList, cal, bias)

	switch reportFormat {
	case "json":
		if reportOutput == "" {
			return fmt.Errorf("--output is required for json format")
		}
		if err := reporting.WriteJSON(report, reportOutput); err != nil {
			return err
		}
		fmt.Printf("Report saved to: %s\n", reportOutput)
	case "csv":
		if reportOutput == "" {
			return fmt.Errorf("--output is required for csv format")
		}
		if err := reporting.WriteCSV(report, reportOutput); err != nil {
			return err
		}
		fmt.Printf("Report saved to: %s\n", reportOutput)
	case "default":
		printComparisonTable(report)
		if reportInterpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummary(report))
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, json, csv)", reportFormat)
	}

	return nil
}
