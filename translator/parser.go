package translator

import (
	"fmt"
	"strings"
)

// ============================================================================
// RESPONSE PARSER — Extracts the program text from model output
// ============================================================================
// Models fence JSON in markdown despite instructions. Extraction strips
// one fence or pulls the first balanced JSON object; structural
// validation of what is inside stays with the engine.
// ============================================================================

// ExtractionError reports model output with no extractable program.
type ExtractionError struct {
	Snippet string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no JSON program found in model output: %.120s", e.Snippet)
}

// ExtractProgram pulls the JSON program text out of raw model output.
func ExtractProgram(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	// Fenced block first.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	if strings.HasPrefix(s, "{") {
		if obj, ok := balancedObject(s); ok {
			return obj, nil
		}
	}

	// Prose around the object: find the first balanced {...}.
	if start := strings.Index(s, "{"); start >= 0 {
		if obj, ok := balancedObject(s[start:]); ok {
			return obj, nil
		}
	}

	return "", &ExtractionError{Snippet: raw}
}

// balancedObject returns the prefix of s forming one brace-balanced
// JSON object, tracking string literals so braces inside values do not
// miscount.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[:i+1], true
				}
			}
		}
	}
	return "", false
}
