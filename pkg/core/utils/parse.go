// Package utils holds small shared helpers for taming LLM output: lenient
// JSON parsing and markdown hygiene.
package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

var codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSONBlock strips a surrounding markdown code fence if present.
// Models frequently wrap structured answers in ```json fences despite
// instructions.
func ExtractJSONBlock(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if matches := codeFencePattern.FindStringSubmatch(trimmed); len(matches) > 1 {
		return matches[1]
	}
	return trimmed
}

// RepairJSON fixes common structural defects in model JSON (single quotes,
// trailing commas, unclosed brackets, comments).
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("json repair failed: %v", err)
	}
	return repaired, nil
}

// SmartParse unmarshals model output into out, escalating through parsing
// strategies: strict JSON, then Hjson, then repaired JSON. The input is
// de-fenced first. Hjson runs before repair because the repairer accepts
// quoteless multi-line layouts too eagerly: it folds the remaining lines into
// the first value instead of failing, so it must stay the last resort for
// input that is structurally JSON (single quotes, trailing commas, unclosed
// brackets). An error here means the structure is genuinely unusable —
// callers should treat it as a schema mismatch, not retry.
func SmartParse(input string, out interface{}) error {
	candidate := ExtractJSONBlock(input)

	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}

	var loose interface{}
	if err := hjson.Unmarshal([]byte(candidate), &loose); err == nil {
		if normalized, err := json.Marshal(loose); err == nil {
			if err := json.Unmarshal(normalized, out); err == nil {
				return nil
			}
		}
	}

	if repaired, err := RepairJSON(candidate); err == nil {
		if err := json.Unmarshal([]byte(repaired), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("smart parse failed: no strategy produced a usable structure")
}
