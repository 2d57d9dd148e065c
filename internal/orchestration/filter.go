package orchestration

import (
	"fmt"
	"path/filepath"

	"github.com/microsoft/chatbench/internal/models"
)

// FilterPrompts returns the subset of prompts whose ID or intent tag
// matches at least one of the given glob patterns. An empty patterns
// slice returns all prompts unchanged.
func FilterPrompts(prompts []models.Prompt, patterns []string) ([]models.Prompt, error) {
	if len(patterns) == 0 {
		return prompts, nil
	}

	var matched []models.Prompt
	for _, p := range prompts {
		ok, err := matchesAny(&p, patterns)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// matchesAny reports whether a prompt's ID or intent matches any pattern.
func matchesAny(p *models.Prompt, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		idMatch, err := filepath.Match(pattern, p.ID)
		if err != nil {
			return false, fmt.Errorf("invalid prompt filter pattern %q: %w", pattern, err)
		}
		if idMatch {
			return true, nil
		}
		intentMatch, err := filepath.Match(pattern, p.Intent)
		if err != nil {
			return false, fmt.Errorf("invalid prompt filter pattern %q: %w", pattern, err)
		}
		if intentMatch {
			return true, nil
		}
	}
	return false, nil
}
