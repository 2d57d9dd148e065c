package main

import (
	"github.com/spf13/cobra"

	"github.com/microsoft/chatbench/internal/utils"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chatbench",
		Short: "chatbench - compare consumer chatbots on a fixed prompt corpus",
		Long: `chatbench runs a fixed prompt corpus against consumer chatbot web UIs,
collects the responses through browser sessions, scores them with a pool
of calibrated LLM judges, and produces a ranked comparison report.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		utils.SetupLogging(*debugLogging)
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newJudgeCommand())
	cmd.AddCommand(newCalibrateCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newListCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
