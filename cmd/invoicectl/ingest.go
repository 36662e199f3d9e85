package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Extract invoices and store them",
	Long: `Extracts every file and stores the resulting invoices in the
collection. Files are processed concurrently; a failure in one does not
stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	raws := make([]string, len(args))
	for i, path := range args {
		raw, err := readInput(cmd, path)
		if err != nil {
			return err
		}
		raws[i] = raw
	}

	ctx := cmd.Context()
	if err := svc.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	failed := 0
	for _, o := range svc.IngestBatch(ctx, raws) {
		name := displayName(args[o.Index])
		if o.Err != nil {
			failed++
			cmd.PrintErrf("FAIL %s: %v\n", name, o.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK   %s  %s  %s  %s %s\n",
			name, o.ID, o.Invoice.VendorName, o.Invoice.TotalAmount.StringFixed(2), o.Invoice.Currency)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d: %w", failed, len(args), errSomeFailed)
	}
	return nil
}
