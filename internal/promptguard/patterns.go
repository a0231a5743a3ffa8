package promptguard

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var embeddedPatterns []byte

// confidence mirrors the data-classification policy style: every pattern
// is tagged with how confident a bare match is, even though the guard
// currently treats any match as a detection (spec §4.2 doesn't grade
// detections). Kept for parity with the format and for future tuning.
type confidence string

const (
	confidenceLow    confidence = "low"
	confidenceMedium confidence = "medium"
	confidenceHigh   confidence = "high"
)

type patternDef struct {
	ID         string     `yaml:"id"`
	Regex      string     `yaml:"regex"`
	Confidence confidence `yaml:"confidence"`
}

type groupDef struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Patterns    []patternDef `yaml:"patterns"`
}

type patternFile struct {
	Groups []groupDef `yaml:"groups"`
}

// compiledPattern pairs a pattern's identity with its compiled regex.
type compiledPattern struct {
	id    string
	group string
	re    *regexp.Regexp
}

var compiledPatterns []compiledPattern

func init() {
	var file patternFile
	if err := yaml.Unmarshal(embeddedPatterns, &file); err != nil {
		panic(fmt.Sprintf("promptguard: embedded patterns.yaml is invalid: %v", err))
	}
	for _, group := range file.Groups {
		for _, p := range group.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				panic(fmt.Sprintf("promptguard: pattern %s/%s does not compile: %v", group.Name, p.ID, err))
			}
			compiledPatterns = append(compiledPatterns, compiledPattern{id: p.ID, group: group.Name, re: re})
		}
	}
}

// patternByID looks up a single compiled pattern, used by the
// neutralization rules which need to address specific patterns rather
// than scan the whole table.
func patternByID(id string) *regexp.Regexp {
	for _, p := range compiledPatterns {
		if p.id == id {
			return p.re
		}
	}
	panic("promptguard: unknown pattern id " + id)
}
