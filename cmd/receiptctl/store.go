package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-itemizer/internal/app"
	"github.com/joseph-ayodele/receipt-itemizer/internal/export"
	repo "github.com/joseph-ayodele/receipt-itemizer/internal/repository"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all receipts and items to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the receipts and items tables",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var dbhealthCmd = &cobra.Command{
	Use:   "dbhealth",
	Short: "Ping the database and report the receipt count",
	Args:  cobra.NoArgs,
	RunE:  runDBHealth,
}

func init() {
	rootCmd.AddCommand(exportCmd, migrateCmd, dbhealthCmd)
	exportCmd.Flags().StringP("output", "o", "receipts.xlsx", "Output file path")
	dbhealthCmd.Flags().Duration("timeout", time.Second, "Ping timeout")
}

func openDB(cmd *cobra.Command, migrate bool) (*repo.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := app.RepositoryConfig(cfg.Database)
	c.AutoMigrate = c.AutoMigrate || migrate
	return repo.Open(cmd.Context(), c, logger)
}

func runExport(cmd *cobra.Command, _ []string) error {
	db, err := openDB(cmd, false)
	if err != nil {
		return err
	}
	defer repo.Close(db, logger)

	b, err := export.NewService(repo.NewReceiptRepository(db, logger), logger).ExportReceiptsXLSX(cmd.Context())
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("output")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(b))
	return nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	db, err := openDB(cmd, true)
	if err != nil {
		return err
	}
	repo.Close(db, logger)
	fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
	return nil
}

func runDBHealth(cmd *cobra.Command, _ []string) error {
	db, err := openDB(cmd, false)
	if err != nil {
		return err
	}
	defer repo.Close(db, logger)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if err := repo.HealthCheck(cmd.Context(), db, timeout, logger); err != nil {
		return fmt.Errorf("DB health: FAIL (%w)", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "DB health: OK")

	recs, err := repo.NewReceiptRepository(db, logger).ListReceipts(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "receipts count: %d\n", len(recs))
	return nil
}
