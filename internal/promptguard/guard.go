// Package promptguard implements the Prompt Guard (spec §4.2): pure
// functions that neutralize prompt-injection attempts and wrap user text
// in a fence the model was never told it may emit.
//
// Patterns are data, not code: internal/promptguard/patterns.yaml is
// compiled once at init, the same way a data-classification policy would
// be loaded and compiled in this codebase's other pattern-matching
// components.
package promptguard

// FenceOpen and FenceClose delimit the wrapped user segment of a prompt
// (spec §6). They must appear verbatim; nothing in the system prompt ever
// instructs the model to emit FenceOpen itself.
const (
	FenceOpen  = "```user_input"
	FenceClose = "```"
)

var (
	fenceBreakout       = patternByID("triple-backtick")
	roleMarker          = patternByID("role-marker")
	instructionOverride = patternByID("override-verb")
)

// SanitizeUserInput neutralizes the three structural injection vectors
// the spec names (§4.2), in order:
//  1. triple backticks are escaped so the user segment cannot close the
//     fence early
//  2. line-initial role markers are bracketed so they read as quoted text
//     rather than a new turn
//  3. instruction-override phrasing is bracketed so it reads as quoted
//     text rather than a directive
//
// It never looks at FenceOpen/FenceClose themselves — those are added
// afterward by WrapUserInput.
func SanitizeUserInput(text string) string {
	text = fenceBreakout.ReplaceAllString(text, "\\`\\`\\`")
	text = roleMarker.ReplaceAllStringFunc(text, func(m string) string {
		loc := roleMarker.FindStringSubmatch(m)
		if len(loc) < 2 {
			return m
		}
		return "[" + loc[1] + "]:"
	})
	text = instructionOverride.ReplaceAllStringFunc(text, func(m string) string {
		return "[" + m + "]"
	})
	return text
}

// WrapUserInput emits the sanitized text inside the fenced delimiter
// block, exactly "FENCE_OPEN\n<text>\nFENCE_CLOSE" (spec §4.2). Empty
// input still produces both markers with nothing between them:
// "FENCE_OPEN\nFENCE_CLOSE".
func WrapUserInput(text string) string {
	if text == "" {
		return FenceOpen + "\n" + FenceClose
	}
	return FenceOpen + "\n" + text + "\n" + FenceClose
}

// DetectInjectionPatterns reports whether raw input matches any known
// injection, jailbreak, or prompt-leak pattern. It does not mutate input;
// callers that want the defanged text call SanitizeUserInput separately.
func DetectInjectionPatterns(text string) bool {
	for _, p := range compiledPatterns {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}
