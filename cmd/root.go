package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mktfun/tork-crm-dbd28456-sub007/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "policy-import",
	Short: "Insurance policy import pipeline",
	Long:  "Recognizes insurance documents, extracts policy records, scores and reconciles them against the brokerage catalog, and commits them after review.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
