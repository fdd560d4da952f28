package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-itemizer/internal/app"
)

var processCmd = &cobra.Command{
	Use:   "process FILE",
	Short: "Itemize one receipt image and store the result",
	Example: `  # Extract and persist
  receiptctl process receipt.jpg

  # Extract only, print the outcome
  receiptctl process receipt.jpg --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var rowsCmd = &cobra.Command{
	Use:   "rows FILE",
	Short: "Print the grouped receipt rows for an image (OCR and grouping only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRows,
}

func init() {
	rootCmd.AddCommand(processCmd, rowsCmd)
	processCmd.Flags().Bool("dry-run", false, "Skip the database; stop after reconciliation")
}

func runProcess(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	validate := cfg.Validate
	if dryRun {
		validate = cfg.ValidatePipeline
	}
	if err := validate(); err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg, logger, app.Options{WithDatabase: !dryRun})
	if err != nil {
		return err
	}
	defer a.Close()

	out, perr := a.Processor.ProcessFile(cmd.Context(), args[0])
	if out != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return perr
}

func runRows(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidatePipeline(); err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.Processor.Rows(cmd.Context(), data)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Fprintln(cmd.OutOrStdout(), r.Text)
	}
	return nil
}
