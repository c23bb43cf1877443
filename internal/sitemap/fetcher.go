// Package sitemap snapshots a target site's pages for internal-link
// candidate selection. Snapshots are per job, never persisted.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/writgo/content-engine/internal/pipeline"
)

const (
	maxSitemapBytes = 4 << 20
	defaultMaxPages = 50
	maxTitleScrapes = 10
)

// Fetcher downloads and parses /sitemap.xml.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
	maxPages   int
}

var _ pipeline.SitemapFetcher = (*Fetcher)(nil)

// NewFetcher builds a fetcher. maxPages <= 0 selects the default cap.
func NewFetcher(logger *slog.Logger, maxPages int) *Fetcher {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		maxPages:   maxPages,
	}
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// Fetch returns up to maxPages entries from the site's sitemap. Page titles
// come from the URL slug; the first few pages are scraped for their real
// <title> to improve relevance ranking.
func (f *Fetcher) Fetch(ctx context.Context, siteURL string) ([]pipeline.Page, error) {
	sitemapURL := strings.TrimRight(siteURL, "/") + "/sitemap.xml"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new sitemap request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch sitemap: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap: %w", err)
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	pages := make([]pipeline.Page, 0, len(set.URLs))
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		pages = append(pages, pipeline.Page{URL: loc, Title: titleFromSlug(loc)})
		if len(pages) == f.maxPages {
			break
		}
	}

	f.scrapeTitles(ctx, pages)

	f.logger.Debug("Sitemap snapshot loaded",
		slog.String("site", siteURL),
		slog.Int("pages", len(pages)),
	)
	return pages, nil
}

// scrapeTitles fills in real page titles for the first few entries.
// Failures are ignored; the slug-derived title stays.
func (f *Fetcher) scrapeTitles(ctx context.Context, pages []pipeline.Page) {
	n := len(pages)
	if n > maxTitleScrapes {
		n = maxTitleScrapes
	}
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		if title := f.pageTitle(ctx, pages[i].URL); title != "" {
			pages[i].Title = title
		}
	}
}

func (f *Fetcher) pageTitle(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// titleFromSlug derives a readable title from the last URL path segment.
func titleFromSlug(loc string) string {
	trimmed := strings.TrimRight(loc, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return trimmed
	}
	slug := trimmed[idx+1:]
	slug = strings.TrimSuffix(slug, ".html")
	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(slug, "-", " "), "_", " "))
}
