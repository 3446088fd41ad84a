package explain

// Kind classifies why an explanation could not be produced.
type Kind string

const (
	// KindConfig covers missing credentials and empty or blocked replies.
	KindConfig Kind = "config"
	// KindQuota means the primary provider is out of quota and the fallback did not answer.
	KindQuota Kind = "quota"
	// KindProvider covers every other provider error.
	KindProvider Kind = "provider"
)

// Failure describes a failed explanation.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Sections holds the seven labelled sections of a model reply after defaults.
type Sections struct {
	Summary      string `json:"summary"`
	Intent       string `json:"intent"`
	WalletImpact string `json:"wallet_impact"`
	Fees         string `json:"fees"`
	ProgramsUsed string `json:"programs_used"`
	Risk         string `json:"risk"`
	Explanation  string `json:"explanation"`
}

// Result is the structured explanation of one transaction.
// When Failure is set the narrative fields carry placeholder text.
type Result struct {
	Summary      string   `json:"summary"`
	Intent       string   `json:"intent"`
	WalletImpact string   `json:"wallet_impact"`
	Fees         string   `json:"fees"`
	ProgramsUsed string   `json:"programs_used"`
	Risk         string   `json:"risk"`
	Explanation  string   `json:"explanation"`
	RiskFlags    []string `json:"risk_flags"`
	Sections     Sections `json:"sections"`

	// Provider names the provider that answered; empty on failure.
	Provider string   `json:"provider,omitempty"`
	Failure  *Failure `json:"failure,omitempty"`
}

// Failed reports whether the result carries a failure.
func (r Result) Failed() bool {
	return r.Failure != nil
}

func failed(kind Kind, msg string) Result {
	return Result{
		Summary:     "Explanation unavailable.",
		Intent:      IntentUnknown,
		Explanation: msg,
		RiskFlags:   []string{},
		Failure:     &Failure{Kind: kind, Message: msg},
	}
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
