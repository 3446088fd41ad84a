package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/brojonat/txplain/client"
	"github.com/urfave/cli/v2"
)

func explainCommand() *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "Explain a transaction through the txplain server",
		ArgsUsage: "SIGNATURE",
		Description: `Ask the server to fetch, summarize and explain a transaction.

Example:
  txplain explain 5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7
  txplain explain --technical --jq '.wallet_changes.sol_balance_change' SIGNATURE`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "technical",
				Usage: "Ask for a technical explanation instead of a beginner one",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the JSON response",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "Request timeout",
				Value:   client.DefaultTimeout,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction signature is required")
			}
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			api := client.NewClient(serverURL, nil, nil)
			out, err := api.Explain(ctx, c.Args().Get(0), !c.Bool("technical"))
			if err != nil {
				return fmt.Errorf("explain failed: %w", err)
			}

			if c.Bool("json") || c.String("jq") != "" {
				return writeJSON(c.App.Writer, out, c.String("jq"))
			}
			printExplanation(c.App.Writer, out)
			return nil
		},
	}
}

func printExplanation(w io.Writer, e *client.Explanation) {
	fmt.Fprintf(w, "Summary:   %s\n", e.Summary)
	fmt.Fprintf(w, "Intent:    %s\n", e.Intent)
	fmt.Fprintf(w, "Impact:    %s\n", e.WalletChanges.WalletImpactText)
	fmt.Fprintf(w, "Fees:      %s\n", e.Fees)
	if len(e.RiskFlags) == 0 {
		fmt.Fprintf(w, "Risk:      none\n")
	} else {
		fmt.Fprintf(w, "Risk:      %s\n", strings.Join(e.RiskFlags, "; "))
	}
	if e.Provider != "" {
		fmt.Fprintf(w, "Provider:  %s\n", e.Provider)
	}

	if len(e.WalletChanges.SOLBalanceChange) > 0 {
		fmt.Fprintf(w, "\nSOL changes:\n")
		for _, ch := range e.WalletChanges.SOLBalanceChange {
			fmt.Fprintf(w, "  %-16s %+.9f SOL\n", ch.Account, ch.ChangeSOL)
		}
	}
	if len(e.WalletChanges.TokenBalanceChanges) > 0 {
		fmt.Fprintf(w, "\nToken changes:\n")
		for _, ch := range e.WalletChanges.TokenBalanceChanges {
			fmt.Fprintf(w, "  %-16s %+g\n", ch.Mint, ch.Change)
		}
	}

	fmt.Fprintf(w, "\n%s\n", e.Explanation)
}
