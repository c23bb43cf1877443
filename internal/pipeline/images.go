package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// imagePlaceholderPattern matches the [IMAGE-n] tokens the generation prompt
// asks the model to emit.
var imagePlaceholderPattern = regexp.MustCompile(`\[IMAGE-(\d+)\]`)

const promptWindow = 300

// stageInlineImages replaces [IMAGE-n] placeholders with generated images.
// At most MaxInlineImages placeholders are honored; the rest are stripped.
// A single failed generation removes only its own placeholder.
func (o *Orchestrator) stageInlineImages(ctx context.Context, jc *jobContext) error {
	body := jc.artifact.Body
	maxImages := o.cfg.MaxInlineImages

	// Replace one placeholder at a time, re-scanning after each mutation so
	// positions stay valid.
	seen := 0
	for {
		loc := imagePlaceholderPattern.FindStringIndex(body)
		if loc == nil {
			break
		}
		seen++

		replacement := ""
		if seen <= maxImages {
			if seen > 1 && o.cfg.ImageCallDelay > 0 {
				// Pause between generation calls to respect provider rate limits.
				select {
				case <-time.After(o.cfg.ImageCallDelay):
				case <-ctx.Done():
					jc.artifact.Body = imagePlaceholderPattern.ReplaceAllString(body, "")
					return nil
				}
			}

			prompt := o.buildImagePrompt(jc, body, loc[0])
			url, err := o.generator.GenerateImage(ctx, prompt)
			if err == nil && url != "" {
				replacement = fmt.Sprintf(`<figure><img src=%q alt=%q /></figure>`, url, jc.spec.Topic)
				jc.artifact.ImageURLs = append(jc.artifact.ImageURLs, url)
			} else {
				jc.warnf("Could not generate image %d, continuing without it", seen)
			}
		}

		body = body[:loc[0]] + replacement + body[loc[1]:]
	}

	jc.artifact.Body = body
	return nil
}

// stageFeaturedImage generates a cover image and uploads it to the target
// CMS so it can be set as the post's featured media.
func (o *Orchestrator) stageFeaturedImage(ctx context.Context, jc *jobContext) error {
	subject := jc.artifact.SEO.FocusKeyword
	if subject == "" {
		subject = jc.artifact.Title
	}
	prompt := fmt.Sprintf("A high quality blog cover photo about %s, photographic style, no text", subject)

	url, err := o.generator.GenerateImage(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generate featured image: %w", err)
	}

	mediaID, mediaURL, err := jc.publisher.UploadMedia(ctx, url)
	if err != nil {
		return fmt.Errorf("upload featured image: %w", err)
	}

	jc.artifact.FeaturedMediaID = mediaID
	jc.artifact.FeaturedImageURL = mediaURL
	return nil
}

// buildImagePrompt builds an image prompt from the topic, the focus keyword
// if known, and a window of surrounding text with markup stripped.
func (o *Orchestrator) buildImagePrompt(jc *jobContext, body string, at int) string {
	start := at - promptWindow
	if start < 0 {
		start = 0
	}
	end := at + promptWindow
	if end > len(body) {
		end = len(body)
	}
	window := StripTags(imagePlaceholderPattern.ReplaceAllString(body[start:end], ""))

	subject := jc.spec.Topic
	if kw := jc.artifact.SEO.FocusKeyword; kw != "" {
		subject = kw
	}
	return fmt.Sprintf("An illustrative photo for a blog article about %s. Context: %s. Photographic style, no text in the image.", subject, window)
}
