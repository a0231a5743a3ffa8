package schemagen

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencedBlock matches a fenced code block, optionally tagged "json", and
// captures its body.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// trailingComma matches a comma immediately before a closing brace or
// bracket, across whitespace/newlines.
var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// corruptSchemaURL matches a "$schema" value that starts with the
// json-schema.org draft-07 host but has been garbled beyond it.
var corruptSchemaURL = regexp.MustCompile(`"\$schema"\s*:\s*"http://json-schema\.org[^"]*"`)

const canonicalSchemaURL = `"$schema": "http://json-schema.org/draft-07/schema#"`

// ExtractSchema pulls the JSON Schema candidate out of raw model output
// (spec §4.4). It tries, in order: a fenced code block, the first
// balanced {...} span, and the whole trimmed string. The first candidate
// that starts with '{', ends with '}', and round-trips through JSON as an
// object wins. Returns the repaired string, or "" if nothing qualifies.
func ExtractSchema(raw string) (string, bool) {
	for _, candidate := range candidates(raw) {
		repaired := repair(candidate)
		if isJSONObject(repaired) {
			return repaired, true
		}
	}
	return "", false
}

func candidates(raw string) []string {
	var out []string
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if span, ok := firstBraceSpan(raw); ok {
		out = append(out, span)
	}
	out = append(out, strings.TrimSpace(raw))
	return out
}

// firstBraceSpan scans for the first '{' and returns the balanced span up
// to its matching '}', tracking string literals so braces inside JSON
// string values don't throw off the depth count.
func firstBraceSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func repair(candidate string) string {
	repaired := candidate
	for {
		next := trailingComma.ReplaceAllString(repaired, "$1")
		if next == repaired {
			break
		}
		repaired = next
	}
	repaired = corruptSchemaURL.ReplaceAllString(repaired, canonicalSchemaURL)
	return repaired
}

func isJSONObject(candidate string) bool {
	trimmed := strings.TrimSpace(candidate)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return false
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return false
	}
	_, isObject := v.(map[string]any)
	return isObject
}
