package pipeline

import (
	"regexp"
	"strings"
)

// Artifact is the article under construction. It is owned by exactly one
// running job and mutated in place by each stage.
type Artifact struct {
	Title            string
	Body             string // HTML fragment
	ImageURLs        []string
	FeaturedMediaID  int64
	FeaturedImageURL string
	SEO              SEOMeta
}

// SEOMeta is the metadata produced by the SEO synthesis stage.
type SEOMeta struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
	FocusKeyword    string `json:"focus_keyword"`
	Excerpt         string `json:"excerpt"`
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// PlainText returns the body with markup stripped.
func (a *Artifact) PlainText() string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(a.Body, " "))
}

// WordCount counts whitespace-separated words in the stripped body.
func (a *Artifact) WordCount() int {
	return len(strings.Fields(a.PlainText()))
}

// StripTags removes markup from an arbitrary HTML snippet.
func StripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, " "))
}
