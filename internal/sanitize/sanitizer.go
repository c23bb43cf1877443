// Package sanitize post-processes generated text, replacing disallowed
// vocabulary with approved alternatives.
package sanitize

import (
	"regexp"
	"strings"
)

// Rule maps one banned word to its replacement. An empty replacement
// removes the word.
type Rule struct {
	Word        string `yaml:"word"`
	Replacement string `yaml:"replacement"`
}

// Sanitizer applies whole-word, case-insensitive replacement rules.
type Sanitizer struct {
	rules []compiledRule
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// New compiles the rule set. Empty words are skipped.
func New(rules []Rule) *Sanitizer {
	s := &Sanitizer{}
	for _, r := range rules {
		word := strings.TrimSpace(r.Word)
		if word == "" {
			continue
		}
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		s.rules = append(s.rules, compiledRule{pattern: pattern, replacement: r.Replacement})
	}
	return s
}

// Clean applies every rule to the text and reports whether the input was
// already clean. It never fails.
func (s *Sanitizer) Clean(text string) (string, bool) {
	clean := true
	out := text
	for _, r := range s.rules {
		if !r.pattern.MatchString(out) {
			continue
		}
		clean = false
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	if !clean {
		// Replacement can leave doubled spaces when a word is removed.
		out = regexp.MustCompile(`  +`).ReplaceAllString(out, " ")
	}
	return out, clean
}
