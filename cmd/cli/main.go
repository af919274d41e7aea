package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// errInconsistent makes the process exit non-zero when reconciliation finds drift.
var errInconsistent = errors.New("ledger discrepancies found")

type options struct {
	baseURL        string
	token          string
	timeout        time.Duration
	idempotencyKey string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "storeledger",
		Short:         "Store ledger CLI tool",
		Long:          `A command line interface for the store ledger API: postings, cashbox, dashboard and reconciliation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", envOr("STORELEDGER_URL", "http://localhost:8080"), "Base URL of the store ledger API")
	flags.StringVar(&opts.token, "token", os.Getenv("STORELEDGER_TOKEN"), "Bearer token")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flags.StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency-Key sent with write requests")

	rootCmd.AddCommand(
		postCmd(opts),
		cashboxCmd(opts),
		dashboardCmd(opts),
		reconcileCmd(opts),
		statementCmd(opts),
		tokenCmd(),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
