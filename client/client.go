package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout covers one RPC fetch plus a provider call and its fallback.
const DefaultTimeout = 150 * time.Second

// SOLBalanceChange is one account's SOL movement.
type SOLBalanceChange struct {
	Account        string  `json:"account"`
	BeforeSOL      float64 `json:"before_sol"`
	AfterSOL       float64 `json:"after_sol"`
	ChangeSOL      float64 `json:"change_sol"`
	BeforeLamports int64   `json:"before_lamports"`
	AfterLamports  int64   `json:"after_lamports"`
	ChangeLamports int64   `json:"change_lamports"`
}

// TokenBalanceChange is one token account's movement, in UI units.
type TokenBalanceChange struct {
	Mint   string  `json:"mint"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Change float64 `json:"change"`
}

// WalletChanges groups the balance deltas with the model's impact text.
type WalletChanges struct {
	SOLBalanceChange    []SOLBalanceChange   `json:"sol_balance_change"`
	TokenBalanceChanges []TokenBalanceChange `json:"token_balance_changes"`
	WalletImpactText    string               `json:"wallet_impact_text"`
}

// Sections holds the raw labelled sections of the model reply.
type Sections struct {
	Summary      string `json:"summary"`
	Intent       string `json:"intent"`
	WalletImpact string `json:"wallet_impact"`
	Fees         string `json:"fees"`
	ProgramsUsed string `json:"programs_used"`
	Risk         string `json:"risk"`
	Explanation  string `json:"explanation"`
}

// Explanation is the server's answer for one transaction.
type Explanation struct {
	Summary       string        `json:"summary"`
	Intent        string        `json:"intent"`
	WalletChanges WalletChanges `json:"wallet_changes"`
	Fees          string        `json:"fees"`
	RiskFlags     []string      `json:"risk_flags"`
	Explanation   string        `json:"explanation"`
	Sections      Sections      `json:"sections"`
	Provider      string        `json:"provider,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the txplain service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new txplain service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Explain asks the server to explain a transaction signature.
func (c *Client) Explain(ctx context.Context, signature string, simple bool) (*Explanation, error) {
	body, err := json.Marshal(map[string]interface{}{
		"tx_hash":     signature,
		"simple_mode": simple,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/explain", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var out Explanation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("transaction explained", "signature", signature, "intent", out.Intent, "provider", out.Provider)
	return &out, nil
}

// Health returns nil when the server reports status ok.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/health", &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("unhealthy status: %q", out.Status)
	}
	return nil
}

// Debug returns the server's masked provider settings.
func (c *Client) Debug(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	if err := c.getJSON(ctx, "/debug", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse builds an APIError from the {"error": ...} body, falling
// back to the raw body text.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
