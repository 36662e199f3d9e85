package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/invoicedex/internal/config"
)

var (
	envName string
	verbose bool

	svc backend
)

var rootCmd = &cobra.Command{
	Use:   "invoicectl",
	Short: "Extract, store and search invoices",
	Long: `invoicectl turns free-form invoice text (e-mails, OCR output, receipts)
into structured records, stores them in the vector collection and runs
semantic search over them. It uses the same configuration as the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if !needsBackend(cmd) {
			return nil
		}
		b, err := newBackend(cmd.Context(), envName, verbose)
		if err != nil {
			return err
		}
		svc = b
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if svc != nil {
			svc.Close()
			svc = nil
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", config.GetEnv(), "configuration environment (config/<env>.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// needsBackend is false for the root and for commands that never touch
// the service.
func needsBackend(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion", cobra.ShellCompRequestCmd:
			return false
		}
	}
	return cmd.HasParent()
}

// readInput reads a file, or stdin for "-" or no path.
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // user-selected input file
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", displayName(path), err)
	}
	return string(data), nil
}

func displayName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

var errSomeFailed = errors.New("some documents failed")
