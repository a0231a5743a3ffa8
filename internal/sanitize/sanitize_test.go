package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePreservesSafeInput(t *testing.T) {
	input := "User with name, email and age"
	assert.Equal(t, input, Sanitize(input))
}

func TestSanitizeClampsLongInputPreservingPrefix(t *testing.T) {
	input := strings.Repeat("a", MaxLength+500)
	out := Sanitize(input)
	assert.Equal(t, MaxLength, utf16Len(out))
	assert.True(t, strings.HasPrefix(input, out))
}

func TestSanitizeRemovesInvisibleUnicode(t *testing.T) {
	input := "hello​world﻿!"
	out := Sanitize(input)
	assert.Equal(t, "helloworld!", out)
}

func TestSanitizeNormalizesLineEndingsAndKeepsTabs(t *testing.T) {
	input := "a\r\nb\rc\td"
	out := Sanitize(input)
	assert.Equal(t, "a\nb\nc\td", out)
}

func TestSanitizeStripsScriptTag(t *testing.T) {
	input := `hello <script>alert(1)</script> world`
	out := Sanitize(input)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "alert(1)")
}

func TestSanitizeStripsIframeAndEventHandlers(t *testing.T) {
	cases := []string{
		`<iframe src="javascript:alert(1)"></iframe>`,
		`<img src=x onerror="alert(1)">`,
		`<a href="javascript:evil()">click</a>`,
	}
	for _, in := range cases {
		out := Sanitize(in)
		assert.NotContains(t, out, "<iframe")
		assert.NotContains(t, out, "onerror=")
		assert.NotContains(t, out, "<img")
		assert.NotContains(t, out, "<a ")
	}
}

func TestSanitizeKeepsTextContentOfStrippedElements(t *testing.T) {
	out := Sanitize("<b>bold</b> and <i>italic</i>")
	assert.Equal(t, "bold and italic", out)
}

func TestSanitizeTotalOnEmptyInput(t *testing.T) {
	assert.Equal(t, "", Sanitize(""))
}

func TestValidateLengthReportsTruncation(t *testing.T) {
	short := ValidateLength("short text", 0)
	assert.True(t, short.IsValid)
	assert.False(t, short.Truncated)

	long := ValidateLength(strings.Repeat("x", MaxLength+10), 0)
	assert.False(t, long.IsValid)
	assert.True(t, long.Truncated)
	assert.Equal(t, MaxLength, utf16Len(long.SanitizedValue))
	assert.Equal(t, MaxLength+10, long.OriginalLength)
}

func TestSanitizeClipboardOnlyReadsPlainText(t *testing.T) {
	payload := ClipboardPayload{
		"text/html": "<b>rich</b>",
		"text/rtf":  "{\\rtf1 rich}",
		"text/plain": "plain text",
	}
	assert.Equal(t, "plain text", SanitizeClipboard(payload))
}

func TestSanitizeClipboardEmptyWithoutPlainText(t *testing.T) {
	payload := ClipboardPayload{"text/html": "<b>rich</b>"}
	assert.Equal(t, "", SanitizeClipboard(payload))
}

func TestSanitizeClipboardSanitizesPlainText(t *testing.T) {
	payload := ClipboardPayload{"text/plain": "hi​<script>x</script>"}
	out := SanitizeClipboard(payload)
	assert.Equal(t, "hi", out)
}

func TestClampNeverSplitsSurrogatePair(t *testing.T) {
	// U+1F600 (grinning face) is a surrogate pair in UTF-16.
	emoji := "\U0001F600"
	input := strings.Repeat("a", MaxLength-1) + emoji
	out, truncated, _ := clamp(input, MaxLength)
	require.True(t, truncated)
	assert.True(t, strings.HasSuffix(out, "a"))
}
