package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/microsoft/chatbench/internal/config"
	"github.com/microsoft/chatbench/internal/judge"
	"github.com/microsoft/chatbench/internal/models"
	"github.com/microsoft/chatbench/internal/targets"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [chatbench.yaml]",
		Short: "List supported adapters, scoring dimensions, and configured targets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listCommandE,
	}
}

func listCommandE(cmd *cobra.Command, args []string) error {
	fmt.Printf("Adapters: %s\n\n", strings.Join(targets.Kinds(), ", "))

	fmt.Println("Dimensions:")
	for _, dim := range models.AllDimensions {
		source := "judged"
		if !judge.Judgeable(dim) {
			source = "measured"
		}
		fmt.Printf("  %-12s weight %.2f  (%s)\n", dim, models.DimensionWeights[dim], source)
	}

	if len(args) == 0 {
		return nil
	}

	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Println("\nTargets:")
	for _, t := range cfg.Targets {
		url := ""
		if t.URL != "" {
			url = "  " + t.URL
		}
		fmt.Printf("  %-12s adapter %-8s max wait %ds%s\n", t.ID, t.Adapter, t.MaxWaitSec, url)
	}

	if len(cfg.Judges) > 0 {
		fmt.Println("\nJudges:")
		for _, j := range cfg.Judges {
			fmt.Printf("  %-12s model %s\n", j.ID, j.Model)
		}
	}
	return nil
}
