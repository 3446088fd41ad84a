package solana

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.TokenProgramID
)

const (
	lamportsPerSOL = 1_000_000_000

	accountLabelLen = 12
	mintLabelLen    = 12
	programLabelLen = 16

	// systemProgramMarker appears in the system program id and its derivatives.
	systemProgramMarker = "11111111111111111111"
)

// extractQuery flattens the parts of a jsonParsed transaction the reducer needs.
// Every step tolerates missing fields and wrong types, so it yields exactly one
// object for any input document.
const extractQuery = `
def obj: if type == "object" then . else {} end;
def arr: if type == "array" then . else [] end;
def tokens: [arr | .[] | objects | {
  key: ([.accountIndex, .mint] | tojson),
  mint: .mint,
  ui: (((.uiTokenAmount | objects) | (.uiAmount // .uiAmountString)) // 0)
}];
obj
| (.meta | obj) as $meta
| (.transaction | obj | .message | obj) as $msg
| {
    fee: (($meta.fee | numbers) // 0),
    pre_balances: [$meta.preBalances | arr | .[]],
    post_balances: [$meta.postBalances | arr | .[]],
    account_keys: [$msg.accountKeys | arr | .[] | if type == "object" then (.pubkey | tostring) else tostring end],
    pre_tokens: ($meta.preTokenBalances | tokens),
    post_tokens: ($meta.postTokenBalances | tokens),
    instructions: [$msg.instructions | arr | .[:20][] | obj | {programId, program}],
    num_instructions: ($msg.instructions | arr | length),
    logs: [$meta.logMessages | arr | .[:20][] | tostring],
    slot: ((.slot | numbers) // null),
    block_time: ((.blockTime | numbers) // null)
  }
`

var extractCode = mustCompile(extractQuery)

func mustCompile(src string) *gojq.Code {
	query, err := gojq.Parse(src)
	if err != nil {
		panic(fmt.Sprintf("invalid jq query: %v", err))
	}
	code, err := gojq.Compile(query)
	if err != nil {
		panic(fmt.Sprintf("failed to compile jq query: %v", err))
	}
	return code
}

// Summarize reduces a raw transaction to a Summary. It never fails: absent or
// malformed parts of the document produce empty fields.
func Summarize(raw *RawTransaction) Summary {
	summary := Summary{
		SOLBalanceChange:    []SOLBalanceChange{},
		TokenBalanceChanges: []TokenBalanceChange{},
		ProgramsUsed:        []string{},
		InstructionTypes:    []string{},
	}

	fields := extract(raw.Document())
	if fields == nil {
		return summary
	}

	feeLamports, _ := asInt64(fields["fee"])
	summary.FeeLamports = feeLamports
	summary.FeePaid = roundTo(float64(feeLamports)/lamportsPerSOL, 9)

	keys := toStrings(fields["account_keys"])
	summary.SOLBalanceChange = solDeltas(asSlice(fields["pre_balances"]), asSlice(fields["post_balances"]), keys)
	summary.TokenBalanceChanges = tokenDeltas(asSlice(fields["pre_tokens"]), asSlice(fields["post_tokens"]))

	seen := make(map[string]struct{})
	for _, ix := range asSlice(fields["instructions"]) {
		m, _ := ix.(map[string]any)
		pid := programID(m)
		if pid == "" {
			pid = "unknown"
		}
		if _, ok := seen[pid]; !ok {
			seen[pid] = struct{}{}
			summary.ProgramsUsed = append(summary.ProgramsUsed, pid)
		}
		summary.InstructionTypes = append(summary.InstructionTypes, InstructionType(programID(m)))
	}
	if n, ok := asInt64(fields["num_instructions"]); ok {
		summary.NumInstructions = int(n)
	}

	summary.LogPreview = strings.Join(toStrings(fields["logs"]), "\n")

	if slot, ok := asInt64(fields["slot"]); ok && slot >= 0 {
		s := uint64(slot)
		summary.Slot = &s
	}
	if bt, ok := asInt64(fields["block_time"]); ok {
		summary.BlockTime = &bt
	}

	return summary
}

// InstructionType labels an instruction by its program id.
func InstructionType(programID string) string {
	switch {
	case strings.Contains(programID, systemProgramMarker):
		return "system"
	case strings.Contains(programID, TokenProgramID.String()), strings.Contains(programID, "Token"):
		return "spl-token"
	case programID == "":
		return "unknown"
	default:
		return shorten(programID, programLabelLen)
	}
}

// extract runs extractQuery over doc. gojq panics on values that are not plain
// JSON types, so a document that did not come from DecodeRawTransaction
// degrades to an empty summary.
func extract(doc any) (fields map[string]any) {
	if doc == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			fields = nil
		}
	}()
	iter := extractCode.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return nil
	}
	if _, isErr := v.(error); isErr {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func solDeltas(pre, post []any, keys []string) []SOLBalanceChange {
	changes := []SOLBalanceChange{}
	for i := 0; i < len(pre) && i < len(post); i++ {
		if i >= len(keys) {
			continue
		}
		before, okPre := asInt64(pre[i])
		after, okPost := asInt64(post[i])
		if !okPre || !okPost {
			// Amounts beyond int64 keep only the SOL fields.
			if ch, ok := wideSOLDelta(pre[i], post[i], keys[i]); ok {
				changes = append(changes, ch)
			}
			continue
		}
		if after == before {
			continue
		}
		delta := after - before
		changes = append(changes, SOLBalanceChange{
			Account:        shorten(keys[i], accountLabelLen),
			BeforeSOL:      roundTo(float64(before)/lamportsPerSOL, 9),
			AfterSOL:       roundTo(float64(after)/lamportsPerSOL, 9),
			ChangeSOL:      roundTo(float64(delta)/lamportsPerSOL, 9),
			BeforeLamports: before,
			AfterLamports:  after,
			ChangeLamports: delta,
		})
	}
	return changes
}

// wideSOLDelta builds a delta from balances asInt64 cannot hold. The lamport
// fields stay zero.
func wideSOLDelta(pre, post any, key string) (SOLBalanceChange, bool) {
	before, okPre := asFloat(pre)
	after, okPost := asFloat(post)
	if !okPre || !okPost || after == before || !isNumber(pre) || !isNumber(post) {
		return SOLBalanceChange{}, false
	}
	return SOLBalanceChange{
		Account:   shorten(key, accountLabelLen),
		BeforeSOL: roundTo(before/lamportsPerSOL, 9),
		AfterSOL:  roundTo(after/lamportsPerSOL, 9),
		ChangeSOL: roundTo((after-before)/lamportsPerSOL, 9),
	}, true
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case int, int64, json.Number, *big.Int:
		return true
	case float64:
		return !math.IsNaN(n) && !math.IsInf(n, 0)
	default:
		return false
	}
}

type tokenEntry struct {
	key  string
	mint string
	ui   float64
}

func toTokenEntries(items []any) []tokenEntry {
	entries := make([]tokenEntry, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, _ := m["key"].(string)
		mint, _ := m["mint"].(string)
		ui, _ := asFloat(m["ui"])
		entries = append(entries, tokenEntry{key: key, mint: mint, ui: ui})
	}
	return entries
}

// tokenDeltas reconciles pre and post token balances by (accountIndex, mint).
// Keys present only before the transaction are reported with after = 0.
func tokenDeltas(preItems, postItems []any) []TokenBalanceChange {
	pre := toTokenEntries(preItems)
	post := toTokenEntries(postItems)

	changes := []TokenBalanceChange{}
	preKeys := make(map[string]struct{}, len(pre))
	for _, p := range pre {
		preKeys[p.key] = struct{}{}

		var after float64
		for _, q := range post {
			if q.key == p.key {
				after = q.ui
				break
			}
		}
		if after == p.ui {
			continue
		}
		changes = append(changes, TokenBalanceChange{
			Mint:   mintLabel(p.mint),
			Before: p.ui,
			After:  after,
			Change: roundTo(after-p.ui, 6),
		})
	}

	for _, q := range post {
		if _, ok := preKeys[q.key]; ok {
			continue
		}
		changes = append(changes, TokenBalanceChange{
			Mint:   mintLabel(q.mint),
			Before: 0,
			After:  q.ui,
			Change: roundTo(q.ui, 6),
		})
	}
	return changes
}

func mintLabel(mint string) string {
	if mint == "" {
		mint = "unknown"
	}
	return truncateRunes(mint, mintLabelLen) + "..."
}

// programID returns programId, else program, skipping empty values.
func programID(ix map[string]any) string {
	for _, field := range []string{"programId", "program"} {
		switch v := ix[field].(type) {
		case nil:
		case string:
			if v != "" {
				return v
			}
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// shorten truncates s to n runes followed by "..." when s is longer than n.
func shorten(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return truncateRunes(s, n) + "..."
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func toStrings(v any) []string {
	items := asSlice(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// asInt64 converts the number shapes produced by gojq and encoding/json.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return asInt64(f)
	case *big.Int:
		if n.IsInt64() {
			return n.Int64(), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
