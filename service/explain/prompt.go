package explain

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/brojonat/txplain/service/solana"
)

const (
	simpleModeLine    = "Explain in simple terms for a beginner."
	technicalModeLine = "Include program names and technical routing details."

	maxPromptPrograms = 10
	maxPromptLogChars = 1000
)

//go:embed prompt.tmpl
var promptText string

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

type promptData struct {
	Mode             string
	Intents          string
	Fee              string
	SOLChanges       string
	TokenChanges     string
	Programs         string
	InstructionTypes string
	When             string
	Logs             string
}

// BuildPrompt renders the instruction prompt for summary. The output depends
// only on its inputs.
func BuildPrompt(summary solana.Summary, simple bool) (string, error) {
	mode := simpleModeLine
	if !simple {
		mode = technicalModeLine
	}

	data := promptData{
		Mode:             mode,
		Intents:          strings.Join(Intents, ", "),
		Fee:              strconv.FormatFloat(summary.FeePaid, 'f', -1, 64),
		SOLChanges:       toJSON(nonNil(summary.SOLBalanceChange)),
		TokenChanges:     toJSON(nonNil(summary.TokenBalanceChanges)),
		Programs:         toJSON(head(summary.ProgramsUsed, maxPromptPrograms)),
		InstructionTypes: toJSON(head(summary.InstructionTypes, maxPromptPrograms)),
		When:             when(summary),
		Logs:             truncate(summary.LogPreview, maxPromptLogChars),
	}

	var b strings.Builder
	if err := promptTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}

func when(summary solana.Summary) string {
	if summary.Slot == nil && summary.BlockTime == nil {
		return ""
	}
	slot, blockTime := "unknown", "unknown"
	if summary.Slot != nil {
		slot = strconv.FormatUint(*summary.Slot, 10)
	}
	if summary.BlockTime != nil {
		blockTime = strconv.FormatInt(*summary.BlockTime, 10)
	}
	return fmt.Sprintf("Slot: %s. Block time (Unix): %s.", slot, blockTime)
}

func head(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}
