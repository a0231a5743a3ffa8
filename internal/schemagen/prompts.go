// Package schemagen builds the generation and evaluation prompts sent to
// the LLM Engine and extracts/repairs the JSON Schema candidate from raw
// model output (spec §4.4).
package schemagen

import (
	"strings"

	"github.com/schemaforge/schemaforge/internal/promptguard"
	"github.com/schemaforge/schemaforge/internal/sanitize"
)

// systemBlock enumerates the generation contract the model must follow.
// It is deliberately terse; the model's only output channel is the fenced
// JSON block this prompt asks it to emit.
const systemBlock = `You convert a free-text description of data into a single JSON Schema document.
Rules:
- Emit only Draft-07 JSON Schema.
- Include a top-level "$schema" field set to "http://json-schema.org/draft-07/schema#".
- Mark every field the description implies is mandatory in a "required" array.
- Never include executable content: no script tags, no event handlers, no function literals.
- Answer with JSON only, inside a single fenced code block.`

// evalSystemBlock enumerates the evaluation contract: the model judges
// whether a candidate schema matches a description, answering with one
// of two fixed tokens.
const evalSystemBlock = `You judge whether a JSON Schema matches a description of the data it should represent.
Respond with exactly one word: "matches" if the schema fits the description, or "does not match" if it does not.
You may answer in Russian or English.`

// BuildGenerationPrompt assembles the prompt handed to the engine for
// schema generation. The user description is sanitized and wrapped in the
// prompt-guard fence before it is interpolated.
func BuildGenerationPrompt(userInput string) string {
	cleaned := sanitize.Sanitize(userInput)
	wrapped := promptguard.WrapUserInput(promptguard.SanitizeUserInput(cleaned))
	return systemBlock + "\n\n" + "User description:\n" + wrapped
}

// BuildEvaluationPrompt assembles the self-evaluation prompt: the wrapped
// description alongside the candidate schema, both inside the prompt so
// the model can compare them.
func BuildEvaluationPrompt(userInput, candidateSchema string) string {
	cleaned := sanitize.Sanitize(userInput)
	wrapped := promptguard.WrapUserInput(promptguard.SanitizeUserInput(cleaned))

	var b strings.Builder
	b.WriteString(evalSystemBlock)
	b.WriteString("\n\n")
	b.WriteString("Description:\n")
	b.WriteString(wrapped)
	b.WriteString("\n\nCandidate schema:\n```json\n")
	b.WriteString(candidateSchema)
	b.WriteString("\n```\n")
	return b.String()
}
