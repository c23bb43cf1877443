package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageJC(body string) *jobContext {
	return &jobContext{
		spec:     JobSpec{Topic: "garden ponds"},
		project:  &Project{},
		artifact: &Artifact{Title: "Garden Ponds", Body: body},
	}
}

func TestStageInlineImages_ReplacesUpToCap(t *testing.T) {
	d := newTestDeps()
	o := newTestOrchestrator(d) // MaxInlineImages: 2

	jc := imageJC("<p>one</p>[IMAGE-1]<p>two</p>[IMAGE-2]<p>three</p>[IMAGE-3]<p>four</p>")
	require.NoError(t, o.stageInlineImages(context.Background(), jc))

	// Two figures in, the overflow placeholder stripped.
	assert.Equal(t, 2, strings.Count(jc.artifact.Body, "<figure>"))
	assert.NotContains(t, jc.artifact.Body, "[IMAGE-")
	assert.Len(t, jc.artifact.ImageURLs, 2)
}

func TestStageInlineImages_FailedGenerationStripsOwnPlaceholder(t *testing.T) {
	d := newTestDeps()
	d.generator.imageErr = errors.New("rate limited")
	o := newTestOrchestrator(d)

	jc := imageJC("<p>one</p>[IMAGE-1]<p>two</p>")
	require.NoError(t, o.stageInlineImages(context.Background(), jc))

	assert.Equal(t, "<p>one</p><p>two</p>", jc.artifact.Body)
	assert.Empty(t, jc.artifact.ImageURLs)
	assert.Len(t, jc.drainWarnings(), 1)
}

func TestStageInlineImages_NoPlaceholders(t *testing.T) {
	o := newTestOrchestrator(newTestDeps())

	jc := imageJC("<p>plain body</p>")
	require.NoError(t, o.stageInlineImages(context.Background(), jc))

	assert.Equal(t, "<p>plain body</p>", jc.artifact.Body)
}

func TestStageInlineImages_CancelStripsRemaining(t *testing.T) {
	d := newTestDeps()
	o := New(Deps{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Generator:    d.generator,
		NewPublisher: func(Target) Publisher { return d.publisher },
		Sanitizer:    passSanitizer{},
		Config: Config{
			MaxInlineImages: 3,
			ImageCallDelay:  50 * time.Millisecond, // forces the delay branch
			PostStatus:      "publish",
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jc := imageJC("[IMAGE-1][IMAGE-2][IMAGE-3]")
	require.NoError(t, o.stageInlineImages(ctx, jc))

	assert.NotContains(t, jc.artifact.Body, "[IMAGE-")
}

func TestStageFeaturedImage(t *testing.T) {
	d := newTestDeps()
	o := newTestOrchestrator(d)

	jc := imageJC("<p>body</p>")
	jc.publisher = d.publisher
	require.NoError(t, o.stageFeaturedImage(context.Background(), jc))

	assert.Equal(t, int64(99), jc.artifact.FeaturedMediaID)
	assert.Equal(t, "https://site.example.com/media/99.jpg", jc.artifact.FeaturedImageURL)
}

func TestStageFeaturedImage_UploadFailure(t *testing.T) {
	d := newTestDeps()
	d.publisher.uploadErr = errors.New("413 too large")
	o := newTestOrchestrator(d)

	jc := imageJC("<p>body</p>")
	jc.publisher = d.publisher
	err := o.stageFeaturedImage(context.Background(), jc)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload featured image")
	assert.Zero(t, jc.artifact.FeaturedMediaID)
}

func TestBuildImagePrompt_WindowAndSubject(t *testing.T) {
	o := newTestOrchestrator(newTestDeps())

	body := "<p>" + strings.Repeat("x", 400) + "</p>[IMAGE-1]<p>koi fish thrive in deep water</p>"
	jc := imageJC(body)
	jc.artifact.SEO.FocusKeyword = "koi ponds"

	at := strings.Index(body, "[IMAGE-1]")
	prompt := o.buildImagePrompt(jc, body, at)

	assert.Contains(t, prompt, "koi ponds")
	assert.Contains(t, prompt, "koi fish thrive")
	assert.NotContains(t, prompt, "[IMAGE-1]")
	// The window is bounded, so the far start of the body is not included.
	assert.Less(t, len(prompt), 2*promptWindow+200)
}
