package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultToneProfile = "informative, friendly and professional"

// buildStages returns the fixed stage order for a job kind. All kinds share
// one driver; variation lives in predicates, not in separate code paths.
func (o *Orchestrator) buildStages(kind JobKind) []Stage {
	isRewrite := func(jc *jobContext) bool { return jc.spec.Kind == JobKindRewrite }
	hasSitemap := func(jc *jobContext) bool { return len(jc.sitemap) > 0 }
	hasAffiliates := func(jc *jobContext) bool { return len(jc.affiliates) > 0 }

	return []Stage{
		{Name: "fetch_source", Label: "Fetching the existing post", Required: true, Predicate: isRewrite, Apply: o.stageFetchSource},
		{Name: "tone_profile", Label: "Resolving tone of voice", Required: true, Apply: o.stageToneProfile},
		{Name: "aux_context", Label: "Collecting site context", Apply: o.stageAuxContext},
		{Name: "generate_text", Label: "Writing the article", Required: true, Apply: o.stageGenerateText},
		{Name: "inline_images", Label: "Generating inline images", Apply: o.stageInlineImages},
		{Name: "embeds", Label: "Normalizing embeds", Apply: o.stageEmbeds},
		{Name: "internal_links", Label: "Adding internal links", Predicate: hasSitemap, Apply: o.stageInternalLinks},
		{Name: "affiliate_links", Label: "Adding product links", Predicate: hasAffiliates, Apply: o.stageAffiliateLinks},
		{Name: "seo_metadata", Label: "Writing SEO metadata", Required: true, Apply: o.stageSEOMetadata},
		{Name: "featured_image", Label: "Creating the featured image", Apply: o.stageFeaturedImage},
		{Name: "sanitize", Label: "Polishing the text", Required: true, Apply: o.stageSanitize},
		{Name: "publish", Label: "Publishing to your website", Required: true, Apply: o.stagePublish},
		{Name: "debit", Label: "Updating your credit balance", Required: true, Apply: o.stageDebit},
	}
}

// stageFetchSource loads the remote post being rewritten. REQUIRED for
// rewrite jobs: without the source there is nothing to rewrite.
func (o *Orchestrator) stageFetchSource(ctx context.Context, jc *jobContext) error {
	post, err := jc.publisher.FetchPost(ctx, jc.spec.PostID)
	if err != nil {
		return NewError(CodeRemoteFetchFailed, "could not fetch post %d", jc.spec.PostID).
			WithDetail(err.Error())
	}
	jc.source = post
	if jc.spec.Topic == "" {
		jc.spec.Topic = post.Title
	}
	return nil
}

// stageToneProfile resolves the brand voice. It never fails the job: a
// missing profile falls back to the default.
func (o *Orchestrator) stageToneProfile(_ context.Context, jc *jobContext) error {
	tone := jc.spec.Options.Tone
	if tone == "" {
		tone = jc.project.ToneProfile
	}
	if tone == "" {
		tone = defaultToneProfile
	}
	jc.tone = tone
	return nil
}

// stageAuxContext prefetches affiliate links and the sitemap snapshot.
// The two reads are independent so they run concurrently; either failing
// degrades to an empty list with a warning.
func (o *Orchestrator) stageAuxContext(ctx context.Context, jc *jobContext) error {
	fetchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		sitemapErr   error
		affiliateErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		pages, err := o.sitemap.Fetch(fetchCtx, jc.project.SiteURL)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			sitemapErr = err
			return
		}
		jc.sitemap = pages
	}()
	go func() {
		defer wg.Done()
		links, err := o.affiliates.ForProject(fetchCtx, jc.spec.ProjectID)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			affiliateErr = err
			return
		}
		jc.affiliates = links
	}()
	wg.Wait()

	if sitemapErr != nil {
		jc.warnf("Could not load the sitemap, skipping internal links")
	}
	if affiliateErr != nil {
		jc.warnf("Could not load product links, skipping them")
	}
	return nil
}

// stageGenerateText is the core generation call. An empty result is a hard
// failure: everything downstream depends on having a body.
func (o *Orchestrator) stageGenerateText(ctx context.Context, jc *jobContext) error {
	prompt := o.buildArticlePrompt(jc)
	text, err := o.generator.GenerateText(ctx, prompt)
	if err != nil {
		return NewError(CodeEmptyGeneration, "article generation failed").WithDetail(err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return NewError(CodeEmptyGeneration, "the model returned an empty article")
	}

	title, body := splitTitle(text)
	if title == "" {
		title = jc.spec.Topic
	}
	jc.artifact.Title = title
	jc.artifact.Body = body
	return nil
}

// stageSanitize rewrites banned vocabulary in the title and body. It only
// mutates and never errors.
func (o *Orchestrator) stageSanitize(_ context.Context, jc *jobContext) error {
	jc.artifact.Title, _ = o.sanitizer.Clean(jc.artifact.Title)
	jc.artifact.Body, _ = o.sanitizer.Clean(jc.artifact.Body)
	jc.artifact.SEO.Title, _ = o.sanitizer.Clean(jc.artifact.SEO.Title)
	jc.artifact.SEO.MetaDescription, _ = o.sanitizer.Clean(jc.artifact.SEO.MetaDescription)
	return nil
}

// stagePublish commits the artifact to the target CMS. Create for new
// content, update for rewrites.
func (o *Orchestrator) stagePublish(ctx context.Context, jc *jobContext) error {
	input := PostInput{
		Title:           jc.artifact.Title,
		Content:         jc.artifact.Body,
		Excerpt:         jc.artifact.SEO.Excerpt,
		Status:          o.cfg.PostStatus,
		MetaTitle:       jc.artifact.SEO.Title,
		MetaDescription: jc.artifact.SEO.MetaDescription,
		FocusKeyword:    jc.artifact.SEO.FocusKeyword,
		FeaturedMediaID: jc.artifact.FeaturedMediaID,
	}

	var (
		ref *PostRef
		err error
	)
	if jc.spec.Kind == JobKindRewrite {
		ref, err = jc.publisher.UpdatePost(ctx, jc.spec.PostID, input)
	} else {
		ref, err = jc.publisher.CreatePost(ctx, input)
	}
	if err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return pe
		}
		return NewError(CodePublishFailed, "publishing to the target site failed").
			WithDetail(err.Error())
	}

	jc.result.RemoteID = ref.ID
	jc.result.RemoteURL = ref.URL
	return nil
}

// stageDebit charges the job cost, last step on the success path only.
// A concurrent balance change surfaces here as InsufficientCredits even
// though the precondition check passed.
func (o *Orchestrator) stageDebit(ctx context.Context, jc *jobContext) error {
	description := fmt.Sprintf("%s: %s", jc.spec.Kind, jc.artifact.Title)
	remaining, unlimited, err := o.ledger.Debit(ctx, jc.spec.ClientID, jc.spec.Cost, description)
	if err != nil {
		if pe, ok := err.(*PipelineError); ok {
			return pe
		}
		return NewError(CodeInsufficientCredits, "balance changed during the job").
			WithDetail(err.Error())
	}
	jc.result.CreditsUsed = jc.spec.Cost
	jc.result.RemainingBalance = remaining
	jc.result.Unlimited = unlimited
	if unlimited {
		jc.result.CreditsUsed = 0
	}
	return nil
}

// buildArticlePrompt assembles the core generation prompt from the job spec,
// tone profile, and (for rewrites) the source material.
func (o *Orchestrator) buildArticlePrompt(jc *jobContext) string {
	var b strings.Builder

	switch jc.spec.Kind {
	case JobKindRewrite:
		b.WriteString("Rewrite and improve the following article. Keep the facts, improve structure and readability.\n")
		if jc.spec.Improvements != "" {
			fmt.Fprintf(&b, "Requested improvements: %s\n", jc.spec.Improvements)
		}
		if jc.source != nil {
			fmt.Fprintf(&b, "\nOriginal article:\n%s\n\n%s\n", jc.source.Title, StripTags(jc.source.Content))
		}
	case JobKindReview:
		fmt.Fprintf(&b, "Write an in-depth product review about: %s\n", jc.spec.Topic)
		b.WriteString("Cover pros, cons, and a clear verdict.\n")
	default:
		fmt.Fprintf(&b, "Write a complete blog article about: %s\n", jc.spec.Topic)
	}

	fmt.Fprintf(&b, "Tone of voice: %s.\n", jc.tone)
	if lang := jc.spec.Options.Language; lang != "" {
		fmt.Fprintf(&b, "Write in language: %s.\n", lang)
	}
	if wc := jc.spec.Options.TargetWordCount; wc > 0 {
		fmt.Fprintf(&b, "Target length: about %d words.\n", wc)
	}
	if jc.spec.Options.IncludeFAQ {
		b.WriteString("End with a FAQ section of 3-5 common questions.\n")
	}
	if jc.spec.Options.IncludeYouTube {
		b.WriteString("Where a video would help, insert a [youtube:SEARCH TERMS] shorthand on its own line.\n")
	}
	fmt.Fprintf(&b, "Where an illustration would help, insert an [IMAGE-n] placeholder on its own line (n starting at 1, at most %d).\n", o.cfg.MaxInlineImages)
	b.WriteString("Return the article as HTML. Start with the title on the first line as <h1>...</h1>, then the body using h2/h3/p/ul tags.\n")

	return b.String()
}

// splitTitle pulls the leading <h1> out of generated HTML; the remainder is
// the body.
func splitTitle(text string) (title, body string) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	start := strings.Index(lower, "<h1")
	if start != 0 {
		return "", trimmed
	}
	open := strings.Index(trimmed, ">")
	end := strings.Index(lower, "</h1>")
	if open < 0 || end < 0 || open > end {
		return "", trimmed
	}
	title = strings.TrimSpace(StripTags(trimmed[open+1 : end]))
	body = strings.TrimSpace(trimmed[end+len("</h1>"):])
	return title, body
}
