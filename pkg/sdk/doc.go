// Package invoicedex is a Go client for the invoicedex HTTP API.
//
//	client, _ := invoicedex.New("http://localhost:8080")
//	res, _ := client.Extract(ctx, "Faktura VAT 12/2025 ... 1.000,00 zł")
//	fmt.Println(res.ID, res.Invoice.VendorName, res.Invoice.TotalAmount)
//
//	hits, _ := client.Search(ctx, "zakup wyposażenia do biura",
//	    invoicedex.Limit(3), invoicedex.WithCurrency("PLN"))
//
// Failures are *APIError values that match the package sentinels with
// errors.Is, so callers can branch on ErrExtractionRefused,
// ErrQuotaExceeded and the rest without parsing codes.
package invoicedex
