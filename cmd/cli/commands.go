package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/infrastructure/auth"
)

func ledgerPath(ledger string) (string, error) {
	switch ledger {
	case "customers", "customer":
		return "/api/v1/customers", nil
	case "suppliers", "supplier":
		return "/api/v1/suppliers", nil
	default:
		return "", fmt.Errorf("unknown ledger %q: want customers or suppliers", ledger)
	}
}

func postCmd(opts *options) *cobra.Command {
	var description, date string

	cmd := &cobra.Command{
		Use:   "post <customers|suppliers> <party-id> <charge|payment> <amount>",
		Short: "Post a charge or payment to a customer or supplier ledger",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ledgerPath(args[0])
			if err != nil {
				return err
			}
			amount, err := domain.MoneyFromString(args[3])
			if err != nil {
				return err
			}

			data, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, base+"/"+url.PathEscape(args[1])+"/balance", map[string]any{
				"type":             args[2],
				"amount":           amount,
				"description":      description,
				"transaction_date": date,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Posting description")
	cmd.Flags().StringVar(&date, "date", "", "Business date (YYYY-MM-DD or dd/mm/yyyy)")
	return cmd
}

func cashboxCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cashbox",
		Short: "Cashbox operations",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the cashbox balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/cashbox", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init <opening-balance>",
		Short: "Initialize the cashbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.MoneyFromString(args[0])
			if err != nil {
				return err
			}
			data, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/cashbox/init", map[string]any{"opening_balance": amount})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}

	var note, date string
	transact := func(use, typ string) *cobra.Command {
		c := &cobra.Command{
			Use:   use + " <amount>",
			Short: "Record a cash " + typ,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := domain.MoneyFromString(args[0])
				if err != nil {
					return err
				}
				data, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/cashbox/transaction", map[string]any{
					"type":   typ,
					"amount": amount,
					"note":   note,
					"date":   date,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), data)
			},
		}
		c.Flags().StringVar(&note, "note", "", "Transaction note")
		c.Flags().StringVar(&date, "date", "", "Business date (YYYY-MM-DD or dd/mm/yyyy)")
		return c
	}

	var confirm bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete every cashbox transaction and return it to uninitialized",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("refusing to reset without --yes")
			}
			data, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/cashbox/reset", map[string]any{"confirmReset": true})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	reset.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")

	cmd.AddCommand(show, initCmd, transact("deposit", "deposit"), transact("withdraw", "withdrawal"), reset)
	return cmd
}

func dashboardCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show dashboard figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/dashboard/stats", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

type reconciliationReport struct {
	Consistent    bool `json:"consistent"`
	Discrepancies []struct {
		AccountID  string       `json:"account_id"`
		Kind       string       `json:"kind"`
		Cached     domain.Money `json:"cached_balance"`
		Replayed   domain.Money `json:"replayed_balance"`
		Difference domain.Money `json:"difference"`
		Issue      string       `json:"issue"`
	} `json:"discrepancies"`
}

func reconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Replay every ledger and compare with the cached balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/reconciliation", nil)
			if err != nil {
				return err
			}

			var report reconciliationReport
			if err := json.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if report.Consistent {
				fmt.Fprintln(out, "Reconciliation PASSED")
				return nil
			}

			fmt.Fprintf(out, "Reconciliation FAILED: %d ledger(s) drifted\n", len(report.Discrepancies))
			for _, d := range report.Discrepancies {
				fmt.Fprintf(out, "  %s %s: cached %s, replayed %s (diff %s) %s\n",
					d.Kind, d.AccountID, d.Cached, d.Replayed, d.Difference, d.Issue)
			}
			return errInconsistent
		},
	}
}

func statementCmd(opts *options) *cobra.Command {
	var output, start, end string

	cmd := &cobra.Command{
		Use:   "statement <customers|suppliers|cashbox> [party-id]",
		Short: "Download an xlsx statement",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if args[0] == "cashbox" {
				path = "/api/v1/cashbox/statement.xlsx"
			} else {
				base, err := ledgerPath(args[0])
				if err != nil {
					return err
				}
				if len(args) != 2 {
					return fmt.Errorf("party id required for %s", args[0])
				}
				path = base + "/" + url.PathEscape(args[1]) + "/statement.xlsx"
			}

			q := url.Values{}
			if start != "" {
				q.Set("startDate", start)
			}
			if end != "" {
				q.Set("endDate", end)
			}
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			data, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "statement.xlsx", "Output file")
	cmd.Flags().StringVar(&start, "start", "", "First day")
	cmd.Flags().StringVar(&end, "end", "", "Last day")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or JWT_SECRET)")
			}
			r := domain.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.NewJWTManager(secret, ttl).Generate(subject, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleOperator), "Role: admin, operator or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
