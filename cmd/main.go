package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "market-ingestor",
	Short: "A CLI for managing the market data ingestion services",
	Long:  `Market Ingestor polls financial data providers, normalizes and deduplicates what they return, and keeps per-stream watermarks so nothing is fetched twice.`,
}

func main() {

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}
