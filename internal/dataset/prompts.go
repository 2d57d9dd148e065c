package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/template"
)

// Prompt corpus CSV columns. The dimensions column holds a
// pipe-separated list; empty means all dimensions apply.
const (
	colID          = "id"
	colIntent      = "intent"
	colPrompt      = "prompt"
	colComplexity  = "complexity"
	colContextText = "context_text"
	colContextURL  = "context_url"
	colDimensions  = "dimensions"
)

// LoadPrompts reads the prompt corpus from a CSV file. Every row needs
// a unique id and non-empty prompt text. The corpus is immutable for
// the duration of a run.
func LoadPrompts(path string) ([]models.Prompt, error) {
	rows, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	return promptsFromRows(rows)
}

// LoadPromptsRange reads a contiguous slice of the corpus (1-based data
// rows, inclusive), for sampling a large corpus without editing it.
func LoadPromptsRange(path string, start, end int) ([]models.Prompt, error) {
	rows, err := LoadCSVRange(path, start, end)
	if err != nil {
		return nil, err
	}
	return promptsFromRows(rows)
}

func promptsFromRows(rows []Row) ([]models.Prompt, error) {
	var err error

	seen := make(map[string]bool, len(rows))
	prompts := make([]models.Prompt, 0, len(rows))

	for i, row := range rows {
		line := i + 2 // 1-based, after header

		id := strings.TrimSpace(row[colID])
		if id == "" {
			return nil, fmt.Errorf("prompts: row %d: missing id", line)
		}
		if seen[id] {
			return nil, fmt.Errorf("prompts: row %d: duplicate id %q", line, id)
		}
		seen[id] = true

		text := strings.TrimSpace(row[colPrompt])
		if text == "" {
			return nil, fmt.Errorf("prompts: row %d: missing prompt text", line)
		}
		text, err = template.Render(text, &template.Context{
			PromptID: id,
			Intent:   strings.TrimSpace(row[colIntent]),
			Vars: map[string]string{
				"context_text": row[colContextText],
				"context_url":  strings.TrimSpace(row[colContextURL]),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("prompts: row %d: %w", line, err)
		}

		complexity := 0
		if raw := strings.TrimSpace(row[colComplexity]); raw != "" {
			complexity, err = strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("prompts: row %d: invalid complexity %q", line, raw)
			}
		}

		dims, err := parseDimensions(row[colDimensions])
		if err != nil {
			return nil, fmt.Errorf("prompts: row %d: %w", line, err)
		}

		prompts = append(prompts, models.Prompt{
			ID:          id,
			Intent:      strings.TrimSpace(row[colIntent]),
			Text:        text,
			Complexity:  complexity,
			ContextText: row[colContextText],
			ContextURL:  strings.TrimSpace(row[colContextURL]),
			Dimensions:  dims,
		})
	}

	return prompts, nil
}

// parseDimensions splits a pipe-separated dimension list. Empty input
// means the full dimension set.
func parseDimensions(raw string) ([]models.Dimension, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		out := make([]models.Dimension, len(models.AllDimensions))
		copy(out, models.AllDimensions)
		return out, nil
	}

	parts := strings.Split(raw, "|")
	out := make([]models.Dimension, 0, len(parts))
	for _, p := range parts {
		d := models.Dimension(strings.ToLower(strings.TrimSpace(p)))
		if !models.IsKnownDimension(d) {
			return nil, fmt.Errorf("unknown dimension %q", p)
		}
		out = append(out, d)
	}
	return out, nil
}
