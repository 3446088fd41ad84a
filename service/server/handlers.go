package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/brojonat/txplain/service/config"
	"github.com/brojonat/txplain/service/explain"
	"github.com/brojonat/txplain/service/nats"
	"github.com/brojonat/txplain/service/solana"
)

const (
	maxRequestBodySize = 1 << 16 // 64KB - a signature and a flag
	emptyImpactText    = "—"
)

type explainRequest struct {
	TxHash     string `json:"tx_hash"`
	SimpleMode *bool  `json:"simple_mode"`
}

type walletChanges struct {
	SOLBalanceChange    []solana.SOLBalanceChange   `json:"sol_balance_change"`
	TokenBalanceChanges []solana.TokenBalanceChange `json:"token_balance_changes"`
	WalletImpactText    string                      `json:"wallet_impact_text"`
}

// ExplainResponse is the success body of POST /explain.
type ExplainResponse struct {
	Summary       string           `json:"summary"`
	Intent        string           `json:"intent"`
	WalletChanges walletChanges    `json:"wallet_changes"`
	Fees          string           `json:"fees"`
	RiskFlags     []string         `json:"risk_flags"`
	Explanation   string           `json:"explanation"`
	Sections      explain.Sections `json:"sections"`
	Provider      string           `json:"provider,omitempty"`
}

// handleExplain returns a handler that explains one transaction.
// POST /explain {"tx_hash": "...", "simple_mode": true}
func handleExplain(fetcher TransactionFetcher, explainer Explainer, publisher nats.Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := requestLogger(ctx, logger)

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req explainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Debug("invalid request body", "error", err)
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}

		txHash := strings.TrimSpace(req.TxHash)
		if txHash == "" {
			writeError(w, "tx_hash is required", http.StatusBadRequest)
			return
		}
		// A hash that is not a signature cannot name a transaction. The RPC
		// node would reject it the same way, so answer without the round trip.
		sig, err := solana.ParseSignature(txHash)
		if err != nil {
			log.Debug("invalid signature", "tx_hash", txHash, "error", err)
			writeError(w, "Transaction not found.", http.StatusNotFound)
			return
		}
		simple := true
		if req.SimpleMode != nil {
			simple = *req.SimpleMode
		}

		raw, err := fetcher.GetTransaction(ctx, sig)
		if err != nil {
			if errors.Is(err, solana.ErrTransactionNotFound) {
				writeError(w, "Transaction not found.", http.StatusNotFound)
				return
			}
			log.Error("failed to fetch transaction", "signature", txHash, "error", err)
			writeError(w, "failed to fetch transaction", http.StatusBadGateway)
			return
		}

		summary := fetcher.Summarize(raw)
		result := explainer.Explain(ctx, summary, simple)

		if result.Failure != nil {
			status := http.StatusServiceUnavailable
			if result.Failure.Kind == explain.KindQuota {
				status = http.StatusTooManyRequests
			}
			log.Warn("explanation failed",
				"signature", txHash,
				"kind", result.Failure.Kind,
				"message", result.Failure.Message,
			)
			writeError(w, result.Failure.Message, status)
			return
		}

		if publisher != nil {
			event := nats.FromResult(txHash, summary, result)
			if err := publisher.PublishExplanation(ctx, event); err != nil {
				log.Error("failed to publish explanation event", "signature", txHash, "error", err)
			}
		}

		log.Info("transaction explained",
			"signature", txHash,
			"intent", result.Intent,
			"provider", result.Provider,
			"simple_mode", simple,
		)
		writeJSON(w, toExplainResponse(summary, result), http.StatusOK)
	})
}

func toExplainResponse(summary solana.Summary, result explain.Result) ExplainResponse {
	impact := result.WalletImpact
	if impact == "" {
		impact = emptyImpactText
	}
	fees := result.Fees
	if fees == "" {
		fees = strconv.FormatFloat(summary.FeePaid, 'f', -1, 64) + " SOL"
	}
	riskFlags := result.RiskFlags
	if riskFlags == nil {
		riskFlags = []string{}
	}
	sol := summary.SOLBalanceChange
	if sol == nil {
		sol = []solana.SOLBalanceChange{}
	}
	tokens := summary.TokenBalanceChanges
	if tokens == nil {
		tokens = []solana.TokenBalanceChange{}
	}

	return ExplainResponse{
		Summary: result.Summary,
		Intent:  result.Intent,
		WalletChanges: walletChanges{
			SOLBalanceChange:    sol,
			TokenBalanceChanges: tokens,
			WalletImpactText:    impact,
		},
		Fees:        fees,
		RiskFlags:   riskFlags,
		Explanation: result.Explanation,
		Sections:    result.Sections,
		Provider:    result.Provider,
	}
}

// handleHealth returns {"status":"ok"}.
func handleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
}

// handleDebug reports which provider credentials are loaded, masked.
func handleDebug(cfg *config.Config) http.Handler {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, cfg.Credentials(), http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
