package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "whodunit",
	Short:         "Play AI-driven murder mysteries in your terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(casesCmd)
}
