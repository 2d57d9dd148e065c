package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/microsoft/chatbench/internal/models"
)

// WriteJSON writes the report as indented JSON.
func WriteJSON(report *ComparisonReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// WriteCSV writes one row per target: overall, each dimension in report
// order, then capture counters. NaN cells are left empty.
func WriteCSV(report *ComparisonReport, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"target", "overall"}
	for _, d := range models.AllDimensions {
		header = append(header, string(d))
	}
	header = append(header, "evaluated", "not_evaluable", "success_rate", "mean_latency_sec")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range report.Targets {
		row := []string{t.TargetID, formatCell(t.Overall)}
		for _, d := range models.AllDimensions {
			v, ok := t.ByDimension[d]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, formatCell(v))
		}
		row = append(row,
			strconv.Itoa(t.Evaluated),
			strconv.Itoa(t.NotEvaluable),
			fmt.Sprintf("%.3f", t.SuccessRate),
			fmt.Sprintf("%.2f", t.MeanLatencySec),
		)
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.3f", v)
}
