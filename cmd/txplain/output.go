package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
)

// applyJQ runs filter over v and returns every value it emits.
func applyJQ(v interface{}, filter string) ([]interface{}, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq only accepts plain JSON values, so round-trip through encoding/json.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}

	var out []interface{}
	iter := code.Run(input)
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, fmt.Errorf("jq filter %q failed: %w", filter, err)
		}
		out = append(out, val)
	}
	return out, nil
}

// writeJSON prints v as indented JSON, or each result of filter when one is given.
func writeJSON(w io.Writer, v interface{}, filter string) error {
	values := []interface{}{v}
	if filter != "" {
		var err error
		if values, err = applyJQ(v, filter); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, val := range values {
		if err := enc.Encode(val); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
	}
	return nil
}
