// Package execguard implements the Executable-Content Detector (spec
// §4.5): it rejects a schema candidate that carries script tags, event
// handlers, or any other construct capable of running code once rendered
// or evaluated downstream.
//
// Patterns live in an embedded YAML file, compiled once at init, the same
// approach internal/promptguard uses for its injection patterns.
package execguard

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var embeddedPatterns []byte

type patternDef struct {
	ID    string `yaml:"id"`
	Regex string `yaml:"regex"`
}

type patternFile struct {
	Patterns []patternDef `yaml:"patterns"`
}

type compiledPattern struct {
	id string
	re *regexp.Regexp
}

var compiledPatterns []compiledPattern

func init() {
	var file patternFile
	if err := yaml.Unmarshal(embeddedPatterns, &file); err != nil {
		panic(fmt.Sprintf("execguard: embedded patterns.yaml is invalid: %v", err))
	}
	for _, p := range file.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			panic(fmt.Sprintf("execguard: pattern %s does not compile: %v", p.ID, err))
		}
		compiledPatterns = append(compiledPatterns, compiledPattern{id: p.ID, re: re})
	}
}

// IsSecure reports whether a schema candidate is free of executable
// content. It is the negation of ContainsExecutableContent, kept as a
// separate name because callers read better asking "is this secure".
func IsSecure(schema string) bool {
	return !ContainsExecutableContent(schema)
}

// ContainsExecutableContent scans a schema candidate string against the
// executable-content pattern table and reports whether any pattern
// matches. MatchedPattern returns the id of the pattern that tripped.
func ContainsExecutableContent(schema string) bool {
	_, matched := MatchedPattern(schema)
	return matched
}

// MatchedPattern returns the id of the first pattern that matches, for
// callers that want to log which rule tripped without echoing the raw
// schema text.
func MatchedPattern(schema string) (string, bool) {
	for _, p := range compiledPatterns {
		if p.re.MatchString(schema) {
			return p.id, true
		}
	}
	return "", false
}
