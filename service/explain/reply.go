package explain

import (
	"strings"
)

// Section labels the model is asked to emit, in prompt order.
const (
	LabelSummary      = "SUMMARY"
	LabelIntent       = "INTENT"
	LabelWalletImpact = "WALLET_IMPACT"
	LabelFees         = "FEES"
	LabelProgramsUsed = "PROGRAMS_USED"
	LabelRisk         = "RISK"
	LabelExplanation  = "EXPLANATION"
)

var labels = []string{
	LabelSummary,
	LabelIntent,
	LabelWalletImpact,
	LabelFees,
	LabelProgramsUsed,
	LabelRisk,
	LabelExplanation,
}

const (
	defaultSummary     = "No summary."
	defaultRisk        = "No suspicious activity."
	defaultExplanation = "—"
)

// IntentUnknown is used when the reply names no recognised intent.
const IntentUnknown = "unknown"

// Intents is the intent vocabulary offered to the model, as displayed in the prompt.
var Intents = []string{
	"SOL transfer",
	"token swap",
	"NFT mint",
	"liquidity add/remove",
	"staking",
	"contract interaction",
	"token transfer",
	"unknown",
}

// intentAliases maps common free-form answers onto the vocabulary.
var intentAliases = []struct {
	prefix string
	intent string
}{
	{"swap", "token swap"},
	{"liquidity", "liquidity add/remove"},
	{"stake", "staking"},
	{"unstake", "staking"},
}

// ParseReply extracts the labelled sections from a model reply.
// Text before the first label is dropped. When a label repeats, the last
// non-empty occurrence wins.
func ParseReply(text string) Result {
	raw := make(map[string]string, len(labels))

	current := ""
	var acc []string
	flush := func() {
		if current == "" {
			return
		}
		if val := strings.TrimSpace(strings.Join(acc, " ")); val != "" {
			raw[current] = val
		}
		acc = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if current != "" {
				acc = append(acc, "")
			}
			continue
		}
		if label, rest, ok := matchLabel(line); ok {
			flush()
			current = label
			acc = nil
			if rest != "" {
				acc = append(acc, rest)
			}
			continue
		}
		if current != "" {
			acc = append(acc, line)
		}
	}
	flush()

	sections := Sections{
		Summary:      orDefault(raw[LabelSummary], defaultSummary),
		Intent:       orDefault(raw[LabelIntent], IntentUnknown),
		WalletImpact: raw[LabelWalletImpact],
		Fees:         raw[LabelFees],
		ProgramsUsed: raw[LabelProgramsUsed],
		Risk:         orDefault(raw[LabelRisk], defaultRisk),
		Explanation:  orDefault(raw[LabelExplanation], defaultExplanation),
	}

	return Result{
		Summary:      sections.Summary,
		Intent:       NormalizeIntent(sections.Intent),
		WalletImpact: sections.WalletImpact,
		Fees:         sections.Fees,
		ProgramsUsed: sections.ProgramsUsed,
		Risk:         sections.Risk,
		Explanation:  sections.Explanation,
		RiskFlags:    riskFlags(sections.Risk),
		Sections:     sections,
	}
}

// matchLabel reports whether line opens a section, returning the label and
// the remainder of the line after the colon.
func matchLabel(line string) (string, string, bool) {
	for _, label := range labels {
		n := len(label) + 1
		if len(line) >= n && strings.EqualFold(line[:n], label+":") {
			return label, strings.TrimSpace(line[n:]), true
		}
	}
	return "", "", false
}

// NormalizeIntent maps a free-form intent onto the vocabulary.
func NormalizeIntent(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "[]\"'*` ")
	s = strings.TrimRight(s, ".!,;: ")
	if s == "" {
		return IntentUnknown
	}
	for _, intent := range Intents {
		if v := strings.ToLower(intent); strings.HasPrefix(s, v) {
			return v
		}
	}
	for _, alias := range intentAliases {
		if strings.HasPrefix(s, alias.prefix) {
			return alias.intent
		}
	}
	return IntentUnknown
}

func riskFlags(risk string) []string {
	switch strings.ToLower(strings.TrimSpace(risk)) {
	case "", "none.", "no suspicious activity.", "—":
		return []string{}
	}
	return []string{risk}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
