package nats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/txplain/service/explain"
	"github.com/brojonat/txplain/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromResult(t *testing.T) {
	slot := uint64(42)
	summary := solana.Summary{
		FeeLamports:  5000,
		ProgramsUsed: []string{"11111111111111111111111111111111"},
		Slot:         &slot,
	}
	result := explain.Result{
		Intent:    "sol transfer",
		Provider:  "gemini",
		RiskFlags: []string{"Large outflow."},
	}

	event := FromResult("sig123", summary, result)

	assert.Equal(t, "sig123", event.Signature)
	assert.Equal(t, "sol transfer", event.Intent)
	assert.Equal(t, "gemini", event.Provider)
	assert.Equal(t, int64(5000), event.FeeLamports)
	assert.Equal(t, 1, event.RiskFlags)
	assert.Equal(t, []string{"11111111111111111111111111111111"}, event.ProgramsUsed)
	assert.WithinDuration(t, time.Now(), event.ExplainedAt, time.Minute)
	assert.Equal(t, "txplain.explained.sol-transfer", event.Subject())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fee_lamports":5000`)
	assert.Contains(t, string(data), `"slot":42`)
}

func TestIntentSlug(t *testing.T) {
	tests := []struct {
		intent string
		want   string
	}{
		{"sol transfer", "sol-transfer"},
		{"liquidity add/remove", "liquidity-add-remove"},
		{"NFT mint", "nft-mint"},
		{"staking", "staking"},
		{"", "unknown"},
		{"  ***  ", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			assert.Equal(t, tt.want, intentSlug(tt.intent))
		})
	}
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "txplain.explained.>", SubjectFor(""))
	assert.Equal(t, "txplain.explained.token-swap", SubjectFor("token swap"))
	assert.Equal(t, "txplain.explained.unknown", (&ExplanationEvent{}).Subject())
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	event := &ExplanationEvent{Signature: "a", Intent: "staking"}

	require.NoError(t, m.PublishExplanation(context.Background(), event))
	assert.Len(t, m.GetPublishedEvents(), 1)

	m.SetPublishError(errors.New("boom"))
	assert.Error(t, m.PublishExplanation(context.Background(), event))
	assert.Len(t, m.GetPublishedEvents(), 1)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}

func TestNewPublisher_ConnectFailure(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewPublisher("nats://127.0.0.1:1", nil, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}
