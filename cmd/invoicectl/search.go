package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/invoicedex/internal/domain/filter"
	dompoint "github.com/kailas-cloud/invoicedex/internal/domain/point"
)

var (
	searchLimit    int
	searchCurrency string
	searchVendor   string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored invoices",
	Long: `Runs a semantic search over stored invoices. The query is embedded
with the same model as the invoice text, so "office furniture" finds
"Fotel Ergonomiczny".`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from config)")
	searchCmd.Flags().StringVar(&searchCurrency, "currency", "", "only invoices in this currency")
	searchCmd.Flags().StringVar(&searchVendor, "vendor", "", "only invoices from this vendor")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	params := filter.Params{Currency: searchCurrency, Vendor: searchVendor}
	expr, err := params.Expression()
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	limit := searchLimit
	if limit == 0 {
		limit = svc.DefaultLimit()
	}

	hits, err := svc.SearchWithFilter(cmd.Context(), args[0], limit, expr)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	printHits(cmd, hits)
	return nil
}

func printHits(cmd *cobra.Command, hits []dompoint.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return
	}
	for i, h := range hits {
		inv := h.Payload
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %.4f  %s  %s  %s %s\n",
			i+1, h.Score, inv.VendorName, inv.InvoiceDate, inv.TotalAmount.StringFixed(2), inv.Currency)
		for _, it := range inv.Items {
			fmt.Fprintf(cmd.OutOrStdout(), "      %d x %s @ %s\n", it.Quantity, it.Name, it.Price.StringFixed(2))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "      id: %s\n", h.ID)
	}
}
