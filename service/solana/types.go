package solana

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawTransaction is the decoded getTransaction result document.
// It is untrusted: any field may be missing or carry an unexpected type.
type RawTransaction struct {
	doc any
}

// DecodeRawTransaction decodes an RPC result body. Numbers are kept as
// json.Number so lamport amounts stay exact.
// A null document is reported as ErrTransactionNotFound.
func DecodeRawTransaction(body []byte) (*RawTransaction, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	if doc == nil {
		return nil, ErrTransactionNotFound
	}
	return &RawTransaction{doc: doc}, nil
}

// Document returns the decoded document for ad-hoc inspection.
func (r *RawTransaction) Document() any {
	if r == nil {
		return nil
	}
	return r.doc
}

// HasMeta reports whether the document carries a meta object.
func (r *RawTransaction) HasMeta() bool {
	if r == nil {
		return false
	}
	m, ok := r.doc.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m["meta"].(map[string]any)
	return ok
}

// SOLBalanceChange is the native balance movement of one account.
// The SOL fields are rounded for display; the lamport fields are exact.
type SOLBalanceChange struct {
	Account        string  `json:"account"`
	BeforeSOL      float64 `json:"before_sol"`
	AfterSOL       float64 `json:"after_sol"`
	ChangeSOL      float64 `json:"change_sol"`
	BeforeLamports int64   `json:"before_lamports"`
	AfterLamports  int64   `json:"after_lamports"`
	ChangeLamports int64   `json:"change_lamports"`
}

// TokenBalanceChange is the movement of one (token account, mint) pair in UI units.
type TokenBalanceChange struct {
	Mint   string  `json:"mint"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Change float64 `json:"change"`
}

// Summary is the compact, model-friendly reduction of a transaction.
// Slices are never nil so they always encode as JSON arrays.
type Summary struct {
	SOLBalanceChange    []SOLBalanceChange   `json:"sol_balance_change"`
	TokenBalanceChanges []TokenBalanceChange `json:"token_balance_changes"`
	ProgramsUsed        []string             `json:"programs_used"`
	FeePaid             float64              `json:"fee_paid"`
	FeeLamports         int64                `json:"fee_lamports"`
	InstructionTypes    []string             `json:"instruction_types"`
	NumInstructions     int                  `json:"num_instructions"`
	LogPreview          string               `json:"log_preview"`
	Slot                *uint64              `json:"slot,omitempty"`
	BlockTime           *int64               `json:"block_time,omitempty"`
}
