// Command invoicectl extracts, stores and searches invoices from the shell.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
