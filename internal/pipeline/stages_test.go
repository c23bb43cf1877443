package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTitle string
		wantBody  string
	}{
		{
			name:      "leading h1",
			input:     "<h1>My Title</h1>\n<p>Body text.</p>",
			wantTitle: "My Title",
			wantBody:  "<p>Body text.</p>",
		},
		{
			name:      "h1 with attributes",
			input:     `<h1 class="headline">My Title</h1><p>Body.</p>`,
			wantTitle: "My Title",
			wantBody:  "<p>Body.</p>",
		},
		{
			name:      "nested markup stripped from title",
			input:     "<h1>My <em>Great</em> Title</h1><p>Body.</p>",
			wantTitle: "My  Great  Title",
			wantBody:  "<p>Body.</p>",
		},
		{
			name:      "no h1 leaves body intact",
			input:     "<p>Just a paragraph.</p>",
			wantTitle: "",
			wantBody:  "<p>Just a paragraph.</p>",
		},
		{
			name:      "h1 not at start is body",
			input:     "<p>intro</p><h1>Late Title</h1>",
			wantTitle: "",
			wantBody:  "<p>intro</p><h1>Late Title</h1>",
		},
		{
			name:      "unclosed h1 is body",
			input:     "<h1>Broken",
			wantTitle: "",
			wantBody:  "<h1>Broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := splitTitle(tt.input)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestStageToneProfile(t *testing.T) {
	o := newTestOrchestrator(newTestDeps())

	tests := []struct {
		name        string
		optionTone  string
		projectTone string
		want        string
	}{
		{name: "option tone wins", optionTone: "witty", projectTone: "formal", want: "witty"},
		{name: "project tone as fallback", projectTone: "formal", want: "formal"},
		{name: "default when nothing set", want: defaultToneProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jc := &jobContext{
				spec:     JobSpec{Options: Options{Tone: tt.optionTone}},
				project:  &Project{ToneProfile: tt.projectTone},
				artifact: &Artifact{},
			}

			require.NoError(t, o.stageToneProfile(context.Background(), jc))
			assert.Equal(t, tt.want, jc.tone)
		})
	}
}

func TestBuildArticlePrompt(t *testing.T) {
	o := newTestOrchestrator(newTestDeps())

	t.Run("generate prompt carries options", func(t *testing.T) {
		jc := &jobContext{
			spec: JobSpec{
				Kind:  JobKindGenerate,
				Topic: "garden ponds",
				Options: Options{
					Language:        "nl",
					TargetWordCount: 1200,
					IncludeFAQ:      true,
					IncludeYouTube:  true,
				},
			},
			tone:     "friendly",
			artifact: &Artifact{},
		}

		prompt := o.buildArticlePrompt(jc)
		assert.Contains(t, prompt, "blog article about: garden ponds")
		assert.Contains(t, prompt, "Tone of voice: friendly.")
		assert.Contains(t, prompt, "language: nl")
		assert.Contains(t, prompt, "about 1200 words")
		assert.Contains(t, prompt, "FAQ section")
		assert.Contains(t, prompt, "[youtube:SEARCH TERMS]")
		assert.Contains(t, prompt, "[IMAGE-n]")
	})

	t.Run("rewrite prompt includes stripped source", func(t *testing.T) {
		jc := &jobContext{
			spec: JobSpec{
				Kind:         JobKindRewrite,
				PostID:       7,
				Improvements: "shorter paragraphs",
			},
			tone: "friendly",
			source: &RemotePost{
				Title:   "Old Title",
				Content: "<p>old <strong>content</strong></p>",
			},
			artifact: &Artifact{},
		}

		prompt := o.buildArticlePrompt(jc)
		assert.Contains(t, prompt, "Rewrite and improve")
		assert.Contains(t, prompt, "Requested improvements: shorter paragraphs")
		assert.Contains(t, prompt, "Old Title")
		assert.Contains(t, prompt, "old  content")
		assert.NotContains(t, prompt, "<strong>")
	})

	t.Run("review prompt asks for verdict", func(t *testing.T) {
		jc := &jobContext{
			spec:     JobSpec{Kind: JobKindReview, Topic: "robot mower"},
			tone:     "critical",
			artifact: &Artifact{},
		}

		prompt := o.buildArticlePrompt(jc)
		assert.Contains(t, prompt, "product review about: robot mower")
		assert.Contains(t, prompt, "verdict")
	})
}

func TestStageAuxContext_DegradesWithWarnings(t *testing.T) {
	d := newTestDeps()
	d.sitemap.err = assert.AnError
	d.affiliates.err = assert.AnError
	o := newTestOrchestrator(d)

	jc := &jobContext{
		spec:     JobSpec{ProjectID: "proj-1"},
		project:  &Project{SiteURL: "https://site.example.com"},
		artifact: &Artifact{},
	}

	require.NoError(t, o.stageAuxContext(context.Background(), jc))
	assert.Empty(t, jc.sitemap)
	assert.Empty(t, jc.affiliates)
	assert.Len(t, jc.drainWarnings(), 2)
}
