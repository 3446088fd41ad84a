package solana

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/txplain/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	body     json.RawMessage
	err      error
	deadline time.Time
	calls    int
}

func (m *mockRPCClient) GetTransaction(ctx context.Context, signature solana.Signature) (json.RawMessage, error) {
	m.calls++
	m.deadline, _ = ctx.Deadline()
	if m.err != nil {
		return nil, m.err
	}
	return m.body, nil
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, 0, metrics.NewMetrics(prometheus.NewRegistry()), logger)
}

func TestClientGetTransaction_Success(t *testing.T) {
	mock := &mockRPCClient{body: json.RawMessage(`{"meta":{"fee":5000},"slot":7}`)}
	client := newTestClient(mock)

	raw, err := client.GetTransaction(context.Background(), solana.MustSignatureFromBase58(testSignature))
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.True(t, raw.HasMeta())
	assert.Equal(t, 1, mock.calls)

	// The call is bounded by the default RPC timeout.
	assert.WithinDuration(t, time.Now().Add(DefaultRPCTimeout), mock.deadline, 5*time.Second)
}

func TestClientGetTransaction_NotFound(t *testing.T) {
	tests := []struct {
		name string
		mock *mockRPCClient
	}{
		{name: "sentinel from adapter", mock: &mockRPCClient{err: ErrTransactionNotFound}},
		{name: "wrapped sentinel", mock: &mockRPCClient{err: errors.Join(ErrTransactionNotFound, errors.New("rpc error -32009"))}},
		{name: "null body", mock: &mockRPCClient{body: json.RawMessage(`null`)}},
		{name: "garbage body", mock: &mockRPCClient{body: json.RawMessage(`{not json`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(tt.mock)
			raw, err := client.GetTransaction(context.Background(), solana.MustSignatureFromBase58(testSignature))
			assert.Nil(t, raw)
			assert.ErrorIs(t, err, ErrTransactionNotFound)
		})
	}
}

func TestClientGetTransaction_TransportError(t *testing.T) {
	client := newTestClient(&mockRPCClient{err: errors.New("dial tcp: connection refused")})

	_, err := client.GetTransaction(context.Background(), solana.MustSignatureFromBase58(testSignature))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTransactionNotFound))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature(testSignature)
	require.NoError(t, err)
	assert.Equal(t, testSignature, sig.String())

	for _, bad := range []string{"", "not-a-signature", "0OIl", "abc"} {
		_, err := ParseSignature(bad)
		assert.Error(t, err, bad)
	}
}
