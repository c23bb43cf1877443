package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmbeds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "video id becomes iframe",
			input: "<p>intro</p>[youtube:dQw4w9WgXcQ]",
			want:  `<p>intro</p><div class="video-embed"><iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ" frameborder="0" allowfullscreen></iframe></div>`,
		},
		{
			name:  "search terms become a search link",
			input: "[youtube:pond pump installation]",
			want:  `<p><a href="https://www.youtube.com/results?search_query=pond+pump+installation" target="_blank" rel="noopener">Watch: pond pump installation</a></p>`,
		},
		{
			name:  "empty argument removed",
			input: "before[youtube: ]after",
			want:  "beforeafter",
		},
		{
			name:  "no shorthand untouched",
			input: "<p>plain text</p>",
			want:  "<p>plain text</p>",
		},
		{
			name:  "multiple shorthands",
			input: "[youtube:abcdefghijk] and [youtube:how to dig]",
			want:  `<div class="video-embed"><iframe src="https://www.youtube.com/embed/abcdefghijk" frameborder="0" allowfullscreen></iframe></div> and <p><a href="https://www.youtube.com/results?search_query=how+to+dig" target="_blank" rel="noopener">Watch: how to dig</a></p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmbeds(tt.input))
		})
	}
}

func TestIsYouTubeID(t *testing.T) {
	assert.True(t, isYouTubeID("dQw4w9WgXcQ"))
	assert.True(t, isYouTubeID("abc-def_123"))
	assert.False(t, isYouTubeID("short"))
	assert.False(t, isYouTubeID("exactly 11!"))
	assert.False(t, isYouTubeID("twelve chars"))
}
