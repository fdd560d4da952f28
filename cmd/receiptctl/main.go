package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
)

var (
	cfg    *common.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "receiptctl",
	Short: "Itemize receipt images from the command line",
	Long: `receiptctl runs receipt images through OCR, row grouping and structured
extraction, and manages the receipt store.

Configuration comes from environment variables, optionally loaded from a
.env file (see --env-file).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		envErr := godotenv.Load(envFile)

		cfg = common.LoadConfig()
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Log.Level = lvl
		}
		logger = common.NewLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)
		if envErr != nil {
			logger.Debug("no env file loaded", "path", envFile, "error", envErr)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file")
	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
