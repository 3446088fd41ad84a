package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brojonat/txplain/client"
	"github.com/brojonat/txplain/service/config"
	"github.com/brojonat/txplain/service/explain"
	"github.com/brojonat/txplain/service/metrics"
	"github.com/brojonat/txplain/service/nats"
	"github.com/brojonat/txplain/service/server"
	"github.com/brojonat/txplain/service/solana"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signature = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

const transferResult = `{
	"slot": 250000000,
	"blockTime": 1700000000,
	"meta": {"fee": 5000, "preBalances": [1000000000, 2000000000], "postBalances": [999995000, 2000005000], "logMessages": ["Program 11111111111111111111111111111111 invoke [1]"]},
	"transaction": {"message": {
		"accountKeys": [{"pubkey": "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}, {"pubkey": "BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"}],
		"instructions": [{"programId": "11111111111111111111111111111111", "program": "system"}]
	}}
}`

const modelReply = `SUMMARY: The wallet sent 0.000005 SOL.
INTENT: SOL transfer
WALLET_IMPACT: SOL: -0.000005.
FEES: 0.000005 SOL
PROGRAMS_USED: System Program
RISK: No suspicious activity.
EXPLANATION: A plain SOL transfer between two wallets.`

// upstreams fakes the RPC node and both LLM providers.
type upstreams struct {
	rpcResult        string
	geminiStatus     int
	geminiBody       string
	openRouterStatus int
	openRouterBody   string

	geminiCalls     atomic.Int32
	openRouterCalls atomic.Int32
	prompts         chan string
}

func geminiText(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{map[string]interface{}{
			"content": map[string]interface{}{
				"role":  "model",
				"parts": []interface{}{map[string]interface{}{"text": text}},
			},
			"finishReason": "STOP",
		}},
	})
	return string(b)
}

func openRouterText(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id":      "gen-1",
		"object":  "chat.completion",
		"choices": []interface{}{map[string]interface{}{"index": 0, "message": map[string]interface{}{"role": "assistant", "content": text}}},
	})
	return string(b)
}

// record keeps a prompt without blocking a handler once the buffer is full.
func record(prompts chan<- string, prompt string) {
	select {
	case prompts <- prompt:
	default:
	}
}

const geminiQuota = `{"error": {"code": 429, "message": "Resource has been exhausted (e.g. check quota).", "status": "RESOURCE_EXHAUSTED"}}`

// setup starts the fakes and a txplain server wired to them, returning a client for it.
func setup(t *testing.T, up *upstreams, geminiKey, openRouterKey string) *client.Client {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	up.prompts = make(chan string, 8)

	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + up.rpcResult + `}`))
	}))
	t.Cleanup(rpcSrv.Close)

	geminiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up.geminiCalls.Add(1)
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
			record(up.prompts, req.Contents[0].Parts[0].Text)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(up.geminiStatus)
		w.Write([]byte(up.geminiBody))
	}))
	t.Cleanup(geminiSrv.Close)

	openRouterSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up.openRouterCalls.Add(1)
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
			record(up.prompts, req.Messages[0].Content)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(up.openRouterStatus)
		w.Write([]byte(up.openRouterBody))
	}))
	t.Cleanup(openRouterSrv.Close)

	cfg := &config.Config{
		SolanaRPCURL:     rpcSrv.URL,
		RPCTimeout:       5 * time.Second,
		GeminiAPIKey:     geminiKey,
		GeminiModel:      config.DefaultGeminiModel,
		OpenRouterAPIKey: openRouterKey,
		OpenRouterModel:  config.DefaultOpenRouterModel,
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	fetcher := solana.NewClient(solana.NewRPCClient(cfg.SolanaRPCURL), cfg.RPCTimeout, m, logger)
	gemini := explain.NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel,
		explain.WithGeminiBaseURL(geminiSrv.URL), explain.WithGeminiHTTPClient(geminiSrv.Client()))
	openRouter := explain.NewOpenRouterProvider(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, openRouterSrv.URL, 5*time.Second)
	explainer := explain.NewExplainer(gemini, openRouter, m, logger)

	srv := server.New(cfg, fetcher, explainer, nats.NewMockPublisher(), m, logger)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	return client.NewClient(httpSrv.URL, nil, logger)
}

func apiError(t *testing.T, err error) *client.APIError {
	t.Helper()
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr
}

func TestServerIntegration_ExplainWithPrimary(t *testing.T) {
	up := &upstreams{rpcResult: transferResult, geminiStatus: http.StatusOK, geminiBody: geminiText(modelReply)}
	api := setup(t, up, "gemini-key", "")

	out, err := api.Explain(context.Background(), signature, true)
	require.NoError(t, err)

	assert.Equal(t, "sol transfer", out.Intent)
	assert.Equal(t, "The wallet sent 0.000005 SOL.", out.Summary)
	assert.Equal(t, "0.000005 SOL", out.Fees)
	assert.Equal(t, "gemini", out.Provider)
	assert.Empty(t, out.RiskFlags)

	require.Len(t, out.WalletChanges.SOLBalanceChange, 2)
	first := out.WalletChanges.SOLBalanceChange[0]
	assert.Equal(t, "AAAAAAAAAAAA...", first.Account)
	assert.Equal(t, int64(-5000), first.ChangeLamports)
	assert.InDelta(t, -0.000005, first.ChangeSOL, 1e-12)

	assert.Equal(t, int32(1), up.geminiCalls.Load())
	assert.Zero(t, up.openRouterCalls.Load())

	prompt := <-up.prompts
	assert.Contains(t, prompt, "- Fee (SOL): 0.000005")
	assert.Contains(t, prompt, "system")
}

func TestServerIntegration_FallbackOnQuota(t *testing.T) {
	up := &upstreams{
		rpcResult:        transferResult,
		geminiStatus:     http.StatusTooManyRequests,
		geminiBody:       geminiQuota,
		openRouterStatus: http.StatusOK,
		openRouterBody:   openRouterText(modelReply),
	}
	api := setup(t, up, "gemini-key", "sk-or-key")

	out, err := api.Explain(context.Background(), signature, false)
	require.NoError(t, err)
	assert.Equal(t, "openrouter", out.Provider)
	assert.Equal(t, "sol transfer", out.Intent)

	assert.Equal(t, int32(1), up.openRouterCalls.Load())
	assert.GreaterOrEqual(t, up.geminiCalls.Load(), int32(1))

	// Both providers receive the same prompt.
	var prompts []string
	for len(up.prompts) > 0 {
		prompts = append(prompts, <-up.prompts)
	}
	require.GreaterOrEqual(t, len(prompts), 2)
	for _, p := range prompts[1:] {
		assert.Equal(t, prompts[0], p)
	}
}

func TestServerIntegration_QuotaWithoutFallback(t *testing.T) {
	up := &upstreams{rpcResult: transferResult, geminiStatus: http.StatusTooManyRequests, geminiBody: geminiQuota}
	api := setup(t, up, "gemini-key", "")

	_, err := api.Explain(context.Background(), signature, true)
	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "OPENROUTER_API_KEY")
	assert.Zero(t, up.openRouterCalls.Load())
}

func TestServerIntegration_FallbackFails(t *testing.T) {
	up := &upstreams{
		rpcResult:        transferResult,
		geminiStatus:     http.StatusTooManyRequests,
		geminiBody:       geminiQuota,
		openRouterStatus: http.StatusUnauthorized,
		openRouterBody:   `{"error": {"message": "No auth credentials found", "code": 401}}`,
	}
	api := setup(t, up, "gemini-key", "sk-or-bad")

	_, err := api.Explain(context.Background(), signature, true)
	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, strings.HasPrefix(apiErr.Message, "Gemini quota exceeded. OpenRouter fallback failed:"), apiErr.Message)
}

func TestServerIntegration_MissingPrimaryKey(t *testing.T) {
	up := &upstreams{rpcResult: transferResult}
	api := setup(t, up, "", "sk-or-key")

	_, err := api.Explain(context.Background(), signature, true)
	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "GEMINI_API_KEY not set.", apiErr.Message)
	assert.Zero(t, up.geminiCalls.Load())
	assert.Zero(t, up.openRouterCalls.Load())
}

func TestServerIntegration_TransactionNotFound(t *testing.T) {
	up := &upstreams{rpcResult: "null", geminiStatus: http.StatusOK, geminiBody: geminiText(modelReply)}
	api := setup(t, up, "gemini-key", "")

	_, err := api.Explain(context.Background(), signature, true)
	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Transaction not found.", apiErr.Message)
	assert.Zero(t, up.geminiCalls.Load())
}

func TestServerIntegration_HealthAndDebug(t *testing.T) {
	api := setup(t, &upstreams{rpcResult: "null"}, "AIzaSyA1234567890abcdWXYZ", "")

	require.NoError(t, api.Health(context.Background()))

	settings, err := api.Debug(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "set (AIzaSyA1...WXYZ)", settings["GEMINI_API_KEY"])
	assert.Equal(t, "not set", settings["OPENROUTER_API_KEY"])
}
