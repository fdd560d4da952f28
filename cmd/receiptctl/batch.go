package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-itemizer/internal/app"
	"github.com/joseph-ayodele/receipt-itemizer/internal/async"
	"github.com/joseph-ayodele/receipt-itemizer/internal/ingest"
)

var batchCmd = &cobra.Command{
	Use:   "batch DIR",
	Short: "Itemize every receipt image under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().Int("workers", 4, "Concurrent pipeline workers")
	batchCmd.Flags().Bool("dry-run", false, "Skip the database")
	batchCmd.Flags().Bool("skip-hidden", true, "Skip hidden files and directories")
	batchCmd.Flags().Duration("timeout", 3*time.Minute, "Per-file processing timeout")
}

func runBatch(cmd *cobra.Command, args []string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipHidden, _ := cmd.Flags().GetBool("skip-hidden")
	timeout, _ := cmd.Flags().GetDuration("timeout")

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

	out := cmd.OutOrStdout()
	var (
		mu         sync.Mutex
		ok, failed int
	)
	q := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(workers),
		async.WithProcessTimeout(timeout),
		async.WithResultHandler(func(r async.Result) {
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				failed++
				fmt.Fprintf(out, "FAIL %s: %v\n", r.Job.Path, r.Err)
				return
			}
			ok++
			items := 0
			if r.Outcome.Result != nil {
				items = len(r.Outcome.Result.Items)
			}
			fmt.Fprintf(out, "OK   %s: %s, %d items (%s)\n", r.Job.Path, r.Outcome.State, items, r.Elapsed.Round(time.Millisecond))
		}),
	)

	stats, err := ingest.IngestDirectory(cmd.Context(), q, args[0], skipHidden)
	q.Shutdown(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "scanned=%d matched=%d ok=%d failed=%d\n", stats.Scanned, stats.Matched, ok, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d receipts failed", failed, stats.Matched)
	}
	return nil
}
