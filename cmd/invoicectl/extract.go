package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extract an invoice without storing it",
	Long: `Reads invoice text from a file or stdin and prints the extracted
record as JSON. Nothing is written to the collection.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	raw, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	inv, err := svc.Preview(cmd.Context(), raw)
	if err != nil {
		return fmt.Errorf("extract %s: %w", displayName(path), err)
	}

	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal invoice: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
