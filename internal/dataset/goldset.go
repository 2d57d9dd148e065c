package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microsoft/chatbench/internal/models"
)

// Gold set CSV columns.
const (
	colGoldPrompt   = "prompt"
	colGoldContext  = "context"
	colGoldResponse = "response"
	colGoldDim      = "dimension"
	colGoldScore    = "human_score"
)

// LoadGoldSet reads human-scored calibration examples from a CSV file.
// Scores must be integers in [1, 5].
func LoadGoldSet(path string) ([]models.GoldSetItem, error) {
	rows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}

	items := make([]models.GoldSetItem, 0, len(rows))
	for i, row := range rows {
		line := i + 2

		prompt := strings.TrimSpace(row[colGoldPrompt])
		if prompt == "" {
			return nil, fmt.Errorf("goldset: row %d: missing prompt", line)
		}
		response := row[colGoldResponse]
		if strings.TrimSpace(response) == "" {
			return nil, fmt.Errorf("goldset: row %d: missing response", line)
		}

		dim := models.Dimension(strings.ToLower(strings.TrimSpace(row[colGoldDim])))
		if !models.IsKnownDimension(dim) {
			return nil, fmt.Errorf("goldset: row %d: unknown dimension %q", line, row[colGoldDim])
		}

		score, err := strconv.Atoi(strings.TrimSpace(row[colGoldScore]))
		if err != nil {
			return nil, fmt.Errorf("goldset: row %d: invalid human_score %q", line, row[colGoldScore])
		}
		if score < models.MinScore || score > models.MaxScore {
			return nil, fmt.Errorf("goldset: row %d: human_score %d out of range [%d, %d]", line, score, models.MinScore, models.MaxScore)
		}

		items = append(items, models.GoldSetItem{
			Prompt:     prompt,
			Context:    row[colGoldContext],
			Response:   response,
			Dimension:  dim,
			HumanScore: score,
		})
	}

	return items, nil
}
