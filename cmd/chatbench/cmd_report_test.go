package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/reporting"
	"github.com/microsoft/chatbench/internal/store"
)

func resetReportFlags() {
	reportConfigPath = "chatbench.yaml"
	reportFormat = "default"
	reportOutput = ""
	reportInterpret = false
}

// seedJudgedRun writes a small judged run: two targets, one prompt,
// factuality verdicts favoring chatgpt.
func seedJudgedRun(t *testing.T, dir string) {
	t.Helper()

	st, err := store.Open(dir)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.WriteManifest(&models.RunManifest{RunID: "run-1", Prompts: 1, Targets: []string{"chatgpt", "gemini"}}))
	for _, target := range []string{"chatgpt", "gemini"} {
		require.NoError(t, st.AppendRecord(&models.ResponseRecord{
			PromptID: "p001", TargetID: target, Status: models.StatusSuccess,
			Text: "An answer.", LatencySec: 2,
		}))
	}
	require.NoError(t, st.AppendScore(&models.DimensionScore{
		PromptID: "p001", TargetID: "chatgpt", Dimension: models.DimFactuality, Score: 5, JudgeID: "judge-1",
	}))
	require.NoError(t, st.AppendScore(&models.DimensionScore{
		PromptID: "p001", TargetID: "gemini", Dimension: models.DimFactuality, Score: 2, JudgeID: "judge-1",
	}))
}

func TestReportCommandWritesJSON(t *testing.T) {
	resetReportFlags()
	dir := t.TempDir()
	runDir := filepath.Join(dir, "run")
	seedJudgedRun(t, runDir)
	outPath := filepath.Join(dir, "report.json")

	root := newRootCommand()
	root.SetArgs([]string{"report", runDir, "--format", "json", "--output", outPath})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var report reporting.ComparisonReport
	require.NoError(t, json.Unmarshal(data, &report))

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"chatgpt", "gemini"}, report.Ranking)
}

func TestReportCommandScoringFromConfig(t *testing.T) {
	resetReportFlags()
	dir := t.TempDir()
	runDir := filepath.Join(dir, "run")
	seedJudgedRun(t, runDir)
	cfgPath := writeFixture(t, dir, "chatbench.yaml", testConfigYAML+"scoring:\n  max_latency_sec: 240\n")
	outPath := filepath.Join(dir, "report.json")

	root := newRootCommand()
	root.SetArgs([]string{"report", runDir, "--config", cfgPath, "--format", "json", "--output", outPath})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var report reporting.ComparisonReport
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Targets, 2)
}

func TestReportCommandExplicitMissingConfigFails(t *testing.T) {
	resetReportFlags()
	dir := t.TempDir()
	runDir := filepath.Join(dir, "run")
	seedJudgedRun(t, runDir)

	root := newRootCommand()
	root.SetArgs([]string{"report", runDir, "--config", filepath.Join(dir, "nope.yaml")})
	require.Error(t, root.Execute())
}
