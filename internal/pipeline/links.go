package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stageInternalLinks asks the generation capability to rank sitemap pages
// against the article's keywords and weaves the top candidates into the body.
// Best-effort: any error leaves the content unchanged.
func (o *Orchestrator) stageInternalLinks(ctx context.Context, jc *jobContext) error {
	keywords := articleKeywords(jc)
	pages, err := o.generator.RankPages(ctx, keywords, jc.sitemap, o.cfg.MaxInternalLinks)
	if err != nil {
		return fmt.Errorf("rank sitemap pages: %w", err)
	}
	if len(pages) == 0 {
		return nil
	}
	if len(pages) > o.cfg.MaxInternalLinks {
		pages = pages[:o.cfg.MaxInternalLinks]
	}

	anchors := make([]string, 0, len(pages))
	for _, p := range pages {
		label := p.Title
		if label == "" {
			label = p.URL
		}
		anchors = append(anchors, fmt.Sprintf(`<p>Read more: <a href=%q>%s</a></p>`, p.URL, label))
	}

	body, err := insertAfterParagraphs(jc.artifact.Body, anchors)
	if err != nil {
		return fmt.Errorf("insert internal links: %w", err)
	}
	jc.artifact.Body = body
	return nil
}

// stageAffiliateLinks inserts product links whose keywords match the article,
// preferring the least-used links so rotation stays fair. Best-effort.
func (o *Orchestrator) stageAffiliateLinks(ctx context.Context, jc *jobContext) error {
	candidates := matchAffiliates(jc.affiliates, articleKeywords(jc), jc.artifact.PlainText())
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) > o.cfg.MaxAffiliateLinks {
		candidates = candidates[:o.cfg.MaxAffiliateLinks]
	}

	anchors := make([]string, 0, len(candidates))
	for _, link := range candidates {
		anchors = append(anchors, fmt.Sprintf(`<p><a href=%q rel="sponsored nofollow">%s</a></p>`, link.URL, link.AnchorText))
	}

	body, err := insertAfterParagraphs(jc.artifact.Body, anchors)
	if err != nil {
		return fmt.Errorf("insert affiliate links: %w", err)
	}
	jc.artifact.Body = body

	for _, link := range candidates {
		// Usage bumps keep rotation fair; a lost increment is harmless.
		if err := o.affiliates.IncrementUsage(ctx, link.ID); err != nil {
			o.logger.Warn("Failed to bump affiliate link usage",
				"link_id", link.ID, "error", err.Error())
		}
	}
	return nil
}

// matchAffiliates filters links whose keywords appear in the article keywords
// or body text, ordered by lowest usage count first.
func matchAffiliates(links []AffiliateLink, keywords []string, plainBody string) []AffiliateLink {
	kwSet := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kwSet[strings.ToLower(kw)] = true
	}
	lowerBody := strings.ToLower(plainBody)

	var matched []AffiliateLink
	for _, link := range links {
		for _, kw := range link.Keywords {
			k := strings.ToLower(strings.TrimSpace(kw))
			if k == "" {
				continue
			}
			if kwSet[k] || strings.Contains(lowerBody, k) {
				matched = append(matched, link)
				break
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].UsageCount < matched[j].UsageCount
	})
	return matched
}

// articleKeywords collects the terms used for link relevance matching.
func articleKeywords(jc *jobContext) []string {
	var kws []string
	if jc.spec.Topic != "" {
		kws = append(kws, jc.spec.Topic)
	}
	if jc.artifact.Title != "" && !strings.EqualFold(jc.artifact.Title, jc.spec.Topic) {
		kws = append(kws, jc.artifact.Title)
	}
	if kw := jc.artifact.SEO.FocusKeyword; kw != "" {
		kws = append(kws, kw)
	}
	return kws
}

// insertAfterParagraphs spreads the given HTML snippets across the body,
// appending each after an evenly spaced top-level paragraph so the markup
// structure stays intact. goquery does the parsing so we never splice into
// the middle of a tag.
func insertAfterParagraphs(body string, snippets []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse body: %w", err)
	}

	paragraphs := doc.Find("body > p, body > h2, body > h3")
	n := paragraphs.Length()
	if n == 0 {
		// No block structure to anchor on; append at the end.
		doc.Find("body").AppendHtml(strings.Join(snippets, ""))
	} else {
		for i, snippet := range snippets {
			at := (i + 1) * n / (len(snippets) + 1)
			if at >= n {
				at = n - 1
			}
			paragraphs.Eq(at).AfterHtml(snippet)
		}
	}

	inner, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}
	return inner, nil
}
