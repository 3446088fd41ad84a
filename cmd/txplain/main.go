package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "txplain",
		Usage: "Plain-English explanations of Solana transactions",
		Description: `A command-line tool for the txplain service.

Use this CLI to explain transactions through a running server, inspect the
reduced summary of a transaction directly from RPC, and watch explanation events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			explainCommand(),
			// Local RPC inspection, no server or LLM involved
			{
				Name:  "tx",
				Usage: "Transaction inspection commands",
				Subcommands: []*cli.Command{
					summarizeCommand(),
				},
			},
			// NATS explanation event commands
			{
				Name:  "events",
				Usage: "Explanation event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					debugCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "txplain server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8000",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
