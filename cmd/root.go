package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "salesmachine",
	Short: "Automated lead generation pipeline",
	Long:  "Turns free-text prospecting requests into qualified leads: discovers companies, fingerprints their tech stack, waits for a human go/no-go, resolves contacts and generates outreach copies.",
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
