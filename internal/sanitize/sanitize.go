// Package sanitize implements the Input Sanitizer (spec §4.1): pure
// functions that turn arbitrary user text into plain text safe to embed in
// a prompt. Sanitization is total — every input, including empty or
// malformed strings, produces a defined output; nothing here returns an
// error.
package sanitize

import (
	"strings"
	"unicode/utf16"

	"golang.org/x/net/html"
)

// MaxLength is the maximum number of UTF-16 code units a sanitized input
// may retain (spec §3, SanitizedInput invariant).
const MaxLength = 2000

// invisibleRanges are the Unicode code points stripped before anything
// else: zero-width joiners/spaces, bidi controls, the BOM, soft hyphen.
var invisibleRanges = []struct{ lo, hi rune }{
	{0x200B, 0x200F}, // zero-width space..right-to-left mark
	{0x2028, 0x202F}, // line/paragraph separator..narrow no-break space
	{0x2060, 0x206F}, // word joiner..nominal digit shapes
	{0xFEFF, 0xFEFF}, // BOM / zero-width no-break space
	{0x00AD, 0x00AD}, // soft hyphen
}

func isInvisible(r rune) bool {
	for _, rg := range invisibleRanges {
		if r >= rg.lo && r <= rg.hi {
			return true
		}
	}
	return false
}

// Result is the outcome of ValidateLength, mirroring SanitizedInput's
// reported invariants (spec §3, §4.1).
type Result struct {
	IsValid        bool
	Truncated      bool
	SanitizedValue string
	OriginalLength int
}

// Sanitize runs the full ordered pipeline from spec §4.1:
//  1. strip invisible Unicode
//  2. normalize line endings to "\n" (tabs survive)
//  3. strip all HTML tags/attributes, keeping only text content
//  4. clamp to MaxLength UTF-16 code units, preserving the prefix
func Sanitize(text string) string {
	text = removeInvisible(text)
	text = normalizeLineEndings(text)
	text = stripHTML(text)
	text, _, _ = clamp(text, MaxLength)
	return text
}

// ValidateLength reports whether text is within MaxLength once fully
// sanitized, and returns the sanitized (possibly truncated) value.
func ValidateLength(text string, max int) Result {
	if max <= 0 {
		max = MaxLength
	}
	cleaned := removeInvisible(text)
	cleaned = normalizeLineEndings(cleaned)
	cleaned = stripHTML(cleaned)

	originalLength := utf16Len(cleaned)
	clamped, truncated, _ := clamp(cleaned, max)

	return Result{
		IsValid:        !truncated,
		Truncated:      truncated,
		SanitizedValue: clamped,
		OriginalLength: originalLength,
	}
}

// ClipboardPayload models the MIME-type → content map a paste event
// carries. Only "text/plain" is ever read (spec §4.1); every other format,
// including "text/html" and "text/rtf", is ignored entirely.
type ClipboardPayload map[string]string

// SanitizeClipboard extracts the plain-text payload, if any, and runs it
// through Sanitize. A payload with no "text/plain" entry yields "",
// regardless of what other formats are present.
func SanitizeClipboard(payload ClipboardPayload) string {
	plain, ok := payload["text/plain"]
	if !ok {
		return ""
	}
	return Sanitize(plain)
}

func removeInvisible(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isInvisible(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}

// stripHTML removes every tag and attribute, keeping only text content
// ("allow-no-tags" policy). It tokenizes rather than regex-strips so that
// content inside <script>/<style> elements — which HTML treats as raw
// text, not markup — is dropped along with the element instead of leaking
// through as "text".
func stripHTML(text string) string {
	if !strings.ContainsAny(text, "<>&") {
		return text
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(text))
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			_ = hasAttr
			if isRawTextElement(string(name)) && tt == html.StartTagToken {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isRawTextElement(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.CommentToken, html.DoctypeToken:
			// dropped entirely
		}
	}
}

func isRawTextElement(name string) bool {
	switch name {
	case "script", "style":
		return true
	default:
		return false
	}
}

// clamp truncates text to at most max UTF-16 code units, preserving the
// leading prefix exactly and never splitting a surrogate pair.
func clamp(text string, max int) (clamped string, truncated bool, originalLen int) {
	units := utf16.Encode([]rune(text))
	originalLen = len(units)
	if len(units) <= max {
		return text, false, originalLen
	}
	cut := max
	// A high surrogate left at the cut would decode alone as U+FFFD; leave
	// the whole pair out instead.
	if cut > 0 && units[cut-1] >= 0xD800 && units[cut-1] < 0xDC00 {
		cut--
	}
	return string(utf16.Decode(units[:cut])), true, originalLen
}

func utf16Len(text string) int {
	return len(utf16.Encode([]rune(text)))
}
