package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/txplain/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams explanation events published by the server.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "Stream explanation events from NATS",
		Description: `Subscribe to explanation events published by the server after each
successful explanation. Events are published to txplain.explained.{intent}.

Example:
  txplain events subscribe --intent "token swap" --count 5`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   nats.DefaultURL,
			},
			&cli.StringFlag{
				Name:  "intent",
				Usage: "Only show events for this intent (default: all)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exit after this many events (0 = run until interrupted)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Exit after this long (0 = no timeout)",
			},
		},
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"), nats.Name("txplain-cli"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			subject := natspkg.SubjectFor(c.String("intent"))
			sub, err := nc.SubscribeSync(subject)
			if err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
			}
			defer sub.Unsubscribe()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout := c.Duration("timeout"); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(c.App.Writer, "📡 Subscribing to: %s\n\n", subject)
			}

			return streamEvents(ctx, sub, c.App.Writer, c.Int("count"), jsonOutput)
		},
	}
}

// streamEvents prints events from sub until ctx ends or limit events were seen.
func streamEvents(ctx context.Context, sub *nats.Subscription, w io.Writer, limit int, jsonOutput bool) error {
	received := 0
	for limit <= 0 || received < limit {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to receive event: %w", err)
		}

		var event natspkg.ExplanationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
			continue
		}
		received++

		if jsonOutput {
			data, _ := json.Marshal(event)
			fmt.Fprintln(w, string(data))
			continue
		}
		printEvent(w, &event)
	}
	return nil
}

func printEvent(w io.Writer, e *natspkg.ExplanationEvent) {
	fmt.Fprintf(w, "%s  %s\n", e.ExplainedAt.Format(time.RFC3339), e.Signature)
	fmt.Fprintf(w, "   Intent:   %s\n", e.Intent)
	fmt.Fprintf(w, "   Provider: %s\n", e.Provider)
	fmt.Fprintf(w, "   Fee:      %d lamports\n", e.FeeLamports)
	if e.RiskFlags > 0 {
		fmt.Fprintf(w, "   Risk flags: %d\n", e.RiskFlags)
	}
	fmt.Fprintln(w)
}
