package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	seoSummaryChars = 1000
	maxSEOTitleLen  = 60
)

// stageSEOMetadata runs a second generation call producing the structured
// title/description/keyword set. REQUIRED: publication depends on it, so a
// malformed result fails the job rather than silently falling back.
func (o *Orchestrator) stageSEOMetadata(ctx context.Context, jc *jobContext) error {
	summary := clipRunes(jc.artifact.PlainText(), seoSummaryChars)

	prompt := fmt.Sprintf(
		"Produce SEO metadata for the article below. Respond with a single JSON object with exactly these fields and nothing else: "+
			`{"title": string, "meta_description": string, "focus_keyword": string, "excerpt": string}. `+
			"The meta_description must be at most 155 characters.\n\nArticle title: %s\n\nArticle start:\n%s",
		jc.artifact.Title, summary,
	)

	raw, err := o.generator.GenerateText(ctx, prompt)
	if err != nil {
		return NewError(CodeSeoParseError, "SEO metadata generation failed").WithDetail(err.Error())
	}

	meta, err := parseSEOResponse(raw)
	if err != nil {
		return NewError(CodeSeoParseError, "SEO metadata did not match the expected schema").
			WithDetail(err.Error())
	}

	meta.Title = TruncateTitle(meta.Title, maxSEOTitleLen)
	jc.artifact.SEO = *meta
	return nil
}

// parseSEOResponse decodes the model output into the strict 4-field schema.
// Code fences are stripped first since models often wrap JSON in them;
// unknown or missing fields are rejected.
func parseSEOResponse(raw string) (*SEOMeta, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var meta SEOMeta
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode seo json: %w", err)
	}
	if meta.Title == "" || meta.MetaDescription == "" || meta.FocusKeyword == "" || meta.Excerpt == "" {
		return nil, fmt.Errorf("seo json is missing required fields")
	}
	return &meta, nil
}

// clipRunes hard-cuts a string to at most limit characters. Counting runes
// rather than bytes keeps multibyte text from being split mid-sequence.
func clipRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// TruncateTitle shortens a title to at most limit characters, cutting at the
// last word boundary before the limit and appending an ellipsis. Titles
// already within bounds pass through unchanged.
func TruncateTitle(title string, limit int) string {
	runes := []rune(title)
	if len(runes) <= limit {
		return title
	}

	// Reserve one slot for the ellipsis.
	cut := string(runes[:limit-1])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:-") + "…"
}
