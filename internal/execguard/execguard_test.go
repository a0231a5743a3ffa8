package execguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSecureForCleanSchema(t *testing.T) {
	schema := `{"$schema":"http://json-schema.org/draft-07/schema#","type":"object","properties":{"name":{"type":"string"}}}`
	assert.True(t, IsSecure(schema))
}

func TestRejectsFunctionLiteral(t *testing.T) {
	schema := `{"default": function(){ return 1; }}`
	assert.False(t, IsSecure(schema))
}

func TestRejectsEval(t *testing.T) {
	assert.False(t, IsSecure(`{"x": eval("1+1")}`))
}

func TestRejectsNewFunction(t *testing.T) {
	assert.False(t, IsSecure(`{"x": new Function("return 1")}`))
}

func TestRejectsTimers(t *testing.T) {
	assert.False(t, IsSecure(`{"x": setTimeout(function(){}, 0)}`))
	assert.False(t, IsSecure(`{"x": setInterval(f, 10)}`))
}

func TestRejectsDocumentAndWindowAccess(t *testing.T) {
	assert.False(t, IsSecure(`{"x": document.cookie}`))
	assert.False(t, IsSecure(`{"x": window.location}`))
}

func TestRejectsScriptIframeObjectEmbed(t *testing.T) {
	assert.False(t, IsSecure(`<script>alert(1)</script>`))
	assert.False(t, IsSecure(`<iframe src="x"></iframe>`))
	assert.False(t, IsSecure(`<object data="x"></object>`))
	assert.False(t, IsSecure(`<embed src="x">`))
}

func TestRejectsEventHandlerAttribute(t *testing.T) {
	assert.False(t, IsSecure(`<img onerror="alert(1)">`))
}

func TestRejectsJavascriptAndDataURIs(t *testing.T) {
	assert.False(t, IsSecure(`{"x": "javascript:alert(1)"}`))
	assert.False(t, IsSecure(`{"x": "data:text/html,<script>1</script>"}`))
	assert.False(t, IsSecure(`{"x": "data:application/javascript,alert(1)"}`))
}

func TestRejectsArrowFunction(t *testing.T) {
	assert.False(t, IsSecure(`{"x": (a, b) => a + b}`))
}

func TestRejectsImportExport(t *testing.T) {
	assert.False(t, IsSecure(`{"x": import("module")}`))
	assert.False(t, IsSecure(`export default {}`))
}

func TestMatchedPatternReturnsID(t *testing.T) {
	id, matched := MatchedPattern(`<script>bad()</script>`)
	assert.True(t, matched)
	assert.Equal(t, "script-tag", id)
}

func TestMatchedPatternEmptyForClean(t *testing.T) {
	_, matched := MatchedPattern(`{"type":"object"}`)
	assert.False(t, matched)
}
