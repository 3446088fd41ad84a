package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// realRPCClient adapts the solana-go RPC client to our RPCClient interface.
// It issues the raw getTransaction call so the reducer sees the jsonParsed
// document exactly as the node returned it.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetTransaction(ctx context.Context, signature solana.Signature) (json.RawMessage, error) {
	params := []interface{}{
		signature.String(),
		map[string]interface{}{
			"encoding":                       solana.EncodingJSONParsed,
			"maxSupportedTransactionVersion": 0,
		},
	}

	var out json.RawMessage
	err := r.client.RPCCallForInto(ctx, &out, "getTransaction", params)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%w: rpc error %d: %s", ErrTransactionNotFound, rpcErr.Code, rpcErr.Message)
		}
		var httpErr *jsonrpc.HTTPError
		if errors.As(err, &httpErr) {
			return nil, fmt.Errorf("%w: rpc http status %d", ErrTransactionNotFound, httpErr.Code)
		}
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	if len(out) == 0 || string(out) == "null" {
		return nil, ErrTransactionNotFound
	}
	return out, nil
}
