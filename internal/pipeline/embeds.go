package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// youtubePattern matches the [youtube:...] shorthand the generation prompt
// asks the model to emit for video suggestions.
var youtubePattern = regexp.MustCompile(`\[youtube:([^\]]+)\]`)

// stageEmbeds rewrites embed shorthands into real markup. Pure text
// transform; it cannot fail.
func (o *Orchestrator) stageEmbeds(_ context.Context, jc *jobContext) error {
	jc.artifact.Body = NormalizeEmbeds(jc.artifact.Body)
	return nil
}

// NormalizeEmbeds converts [youtube:VIDEO_ID] into an iframe embed and
// [youtube:free text] into a search-results link, since only an 11-character
// video id can be embedded directly.
func NormalizeEmbeds(body string) string {
	return youtubePattern.ReplaceAllStringFunc(body, func(match string) string {
		arg := strings.TrimSpace(youtubePattern.FindStringSubmatch(match)[1])
		if arg == "" {
			return ""
		}
		if isYouTubeID(arg) {
			return fmt.Sprintf(
				`<div class="video-embed"><iframe src="https://www.youtube.com/embed/%s" frameborder="0" allowfullscreen></iframe></div>`,
				arg,
			)
		}
		return fmt.Sprintf(
			`<p><a href="https://www.youtube.com/results?search_query=%s" target="_blank" rel="noopener">Watch: %s</a></p>`,
			url.QueryEscape(arg), arg,
		)
	})
}

// isYouTubeID reports whether the argument looks like a YouTube video id
// rather than free-text search terms.
func isYouTubeID(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
