package nats

import (
	"strings"
	"time"

	"github.com/brojonat/txplain/service/explain"
	"github.com/brojonat/txplain/service/solana"
)

// SubjectPrefix prefixes every explanation subject.
const SubjectPrefix = "txplain.explained"

// ExplanationEvent is published after a transaction was explained successfully.
// Subject: "txplain.explained.{intent-slug}".
type ExplanationEvent struct {
	Signature    string    `json:"signature"`
	Intent       string    `json:"intent"`
	Provider     string    `json:"provider"`
	FeeLamports  int64     `json:"fee_lamports"`
	RiskFlags    int       `json:"risk_flags"`
	ProgramsUsed []string  `json:"programs_used"`
	Slot         *uint64   `json:"slot,omitempty"`
	ExplainedAt  time.Time `json:"explained_at"`
}

// FromResult builds the event for an explained transaction.
func FromResult(signature string, summary solana.Summary, result explain.Result) *ExplanationEvent {
	programs := summary.ProgramsUsed
	if programs == nil {
		programs = []string{}
	}
	return &ExplanationEvent{
		Signature:    signature,
		Intent:       result.Intent,
		Provider:     result.Provider,
		FeeLamports:  summary.FeeLamports,
		RiskFlags:    len(result.RiskFlags),
		ProgramsUsed: programs,
		Slot:         summary.Slot,
		ExplainedAt:  time.Now().UTC(),
	}
}

// Subject returns the subject the event is published on.
func (e *ExplanationEvent) Subject() string {
	return SubjectPrefix + "." + intentSlug(e.Intent)
}

// SubjectFor returns the subscription subject for an intent. An empty intent
// matches every explanation subject.
func SubjectFor(intent string) string {
	if strings.TrimSpace(intent) == "" {
		return SubjectPrefix + ".>"
	}
	return SubjectPrefix + "." + intentSlug(intent)
}

// intentSlug turns "liquidity add/remove" into "liquidity-add-remove".
func intentSlug(intent string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(intent) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return explain.IntentUnknown
	}
	return slug
}
