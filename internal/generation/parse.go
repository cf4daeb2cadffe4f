package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	smartQuotes   = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`, "‟", `"`)
	newlines      = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// extractObject returns the first brace-balanced {...} in raw, skipping any
// surrounding prose. Braces inside string literals are ignored. When the
// braces never balance it falls back to the span ending at the last '}'.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	end := strings.LastIndexByte(raw, '}')
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// normalize repairs the usual defects of model-written JSON.
func normalize(s string) string {
	s = smartQuotes.Replace(s)
	s = newlines.Replace(s)
	return trailingComma.ReplaceAllString(s, "$1")
}

// decodeObject runs the full parse policy on raw and decodes the resulting
// object into a map of raw field values. Every failure wraps ErrMalformedOutput.
func decodeObject(raw string) (map[string]json.RawMessage, error) {
	// Normalize first so smart quotes around keys take part in the brace scan.
	obj, ok := extractObject(normalize(raw))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedOutput)
	}
	return fields, nil
}

// requireStrings returns the named fields as non-empty strings.
func requireStrings(fields map[string]json.RawMessage, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformedOutput, k)
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: %q is not a string", ErrMalformedOutput, k)
		}
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %q is empty", ErrMalformedOutput, k)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

// requireObjects checks that each named field is a JSON object.
func requireObjects(fields map[string]json.RawMessage, keys ...string) error {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrMalformedOutput, k)
		}
		if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '{' {
			return fmt.Errorf("%w: %q is not an object", ErrMalformedOutput, k)
		}
	}
	return nil
}

// optionalString returns the named field when it is a string, else "".
func optionalString(fields map[string]json.RawMessage, key string) string {
	var v string
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &v) == nil {
		return strings.TrimSpace(v)
	}
	return ""
}

// decodeStrict decodes a normalized object into v.
func decodeStrict(obj string, v any) error {
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}
