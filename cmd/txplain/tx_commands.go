package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/txplain/service/config"
	"github.com/brojonat/txplain/service/solana"
	"github.com/urfave/cli/v2"
)

func summarizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "summarize",
		Usage:     "Fetch a transaction from RPC and print its summary",
		ArgsUsage: "SIGNATURE",
		Description: `Fetch a transaction with getTransaction and print the reduced summary
that would be sent to the model. No LLM provider is called.

Example:
  txplain tx summarize --jq '.sol_balance_change[] | select(.change_sol < 0)' SIGNATURE`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana JSON-RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   config.DefaultSolanaRPCURL,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "RPC timeout",
				Value: solana.DefaultRPCTimeout,
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to the summary",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction signature is required")
			}
			sig, err := solana.ParseSignature(c.Args().Get(0))
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
			rpcClient := solana.NewClient(solana.NewRPCClient(c.String("rpc-url")), c.Duration("timeout"), nil, logger)

			raw, err := rpcClient.GetTransaction(c.Context, sig)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, rpcClient.Summarize(raw), c.String("jq"))
		},
	}
}
