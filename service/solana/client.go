package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txplain/service/metrics"
	"github.com/gagliardetto/solana-go"
)

// DefaultRPCTimeout bounds a single getTransaction call.
const DefaultRPCTimeout = 30 * time.Second

// ErrTransactionNotFound is returned when the node has no result for a signature,
// or answers with a JSON-RPC error or a non-2xx status.
var ErrTransactionNotFound = errors.New("transaction not found")

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	// GetTransaction returns the raw jsonParsed result document, or an error
	// wrapping ErrTransactionNotFound.
	GetTransaction(ctx context.Context, signature solana.Signature) (json.RawMessage, error)
}

// Client fetches and summarizes single transactions.
type Client struct {
	rpc     RPCClient
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new Solana client. A non-positive timeout uses DefaultRPCTimeout.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	return &Client{
		rpc:     rpcClient,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

// GetTransaction fetches the raw transaction for signature.
// Returns an error matching ErrTransactionNotFound when the node has no result.
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*RawTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	body, err := c.rpc.GetTransaction(ctx, signature)
	duration := metrics.Since(start)

	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			c.metrics.RecordRPCCall("getTransaction", "not_found", duration)
			c.logger.InfoContext(ctx, "transaction not found",
				"signature", signature.String(),
				"reason", err,
			)
			return nil, ErrTransactionNotFound
		}
		c.metrics.RecordRPCCall("getTransaction", "error", duration)
		c.logger.ErrorContext(ctx, "failed to get transaction",
			"signature", signature.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	raw, err := DecodeRawTransaction(body)
	if err != nil {
		c.metrics.RecordRPCCall("getTransaction", "not_found", duration)
		c.logger.WarnContext(ctx, "undecodable transaction result",
			"signature", signature.String(),
			"error", err,
		)
		return nil, ErrTransactionNotFound
	}

	c.metrics.RecordRPCCall("getTransaction", "success", duration)
	c.logger.DebugContext(ctx, "fetched transaction",
		"signature", signature.String(),
		"bytes", len(body),
		"duration_seconds", duration,
	)
	return raw, nil
}

// Summarize reduces raw and records reducer metrics.
func (c *Client) Summarize(raw *RawTransaction) Summary {
	summary := Summarize(raw)
	c.metrics.RecordSummary(raw.HasMeta(), summary.NumInstructions)
	return summary
}

// ParseSignature validates a base58 transaction signature.
func ParseSignature(s string) (solana.Signature, error) {
	sig, err := solana.SignatureFromBase58(s)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid signature: %w", err)
	}
	return sig, nil
}
