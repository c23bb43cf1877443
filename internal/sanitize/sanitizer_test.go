package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizer_Clean(t *testing.T) {
	rules := []Rule{
		{Word: "delve", Replacement: "explore"},
		{Word: "moreover", Replacement: "also"},
		{Word: "tapestry", Replacement: ""},
		{Word: "  ", Replacement: "ignored"}, // blank word is skipped
	}
	s := New(rules)

	tests := []struct {
		name      string
		input     string
		want      string
		wantClean bool
	}{
		{
			name:      "clean text untouched",
			input:     "A plain paragraph about gardening.",
			want:      "A plain paragraph about gardening.",
			wantClean: true,
		},
		{
			name:      "single replacement",
			input:     "Let us delve into the details.",
			want:      "Let us explore into the details.",
			wantClean: false,
		},
		{
			name:      "case insensitive match",
			input:     "Moreover, it works. MOREOVER!",
			want:      "also, it works. also!",
			wantClean: false,
		},
		{
			name:      "whole word only",
			input:     "The delver delved with delve-like care.",
			want:      "The delver delved with explore-like care.",
			wantClean: false,
		},
		{
			name:      "removal collapses doubled spaces",
			input:     "a rich tapestry of flavors",
			want:      "a rich of flavors",
			wantClean: false,
		},
		{
			name:      "multiple rules in one pass",
			input:     "delve deeper; moreover, a tapestry awaits",
			want:      "explore deeper; also, a awaits",
			wantClean: false,
		},
		{
			name:      "empty input",
			input:     "",
			want:      "",
			wantClean: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clean := s.Clean(tt.input)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantClean, clean)
		})
	}
}

func TestSanitizer_NoRules(t *testing.T) {
	s := New(nil)

	got, clean := s.Clean("anything goes here")
	assert.Equal(t, "anything goes here", got)
	assert.True(t, clean)
}
