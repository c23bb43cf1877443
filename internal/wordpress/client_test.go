package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/writgo/content-engine/internal/pipeline"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(pipeline.Target{
		BaseURL:  srv.URL + "/", // trailing slash must be tolerated
		Username: "editor",
		Password: "app-pass",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return client, srv
}

func TestProbe_WordPressTarget(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"name":       "My Site",
			"namespaces": []string{"oembed/1.0", "wp/v2"},
		})
	}))

	require.NoError(t, client.Probe(context.Background()))
	// Basic auth over username:password, pre-encoded once at construction.
	assert.Equal(t, "Basic ZWRpdG9yOmFwcC1wYXNz", gotAuth)
}

func TestProbe_NotWordPress(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"namespaces": []string{"custom/v1"}})
	}))

	err := client.Probe(context.Background())
	require.Error(t, err)

	var pe *pipeline.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pipeline.CodeInvalidTarget, pe.Code)
}

func TestProbe_NonJSONAnswer(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not an API</html>")
	}))

	err := client.Probe(context.Background())
	var pe *pipeline.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pipeline.CodeInvalidTarget, pe.Code)
}

func TestProbe_ErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	err := client.Probe(context.Background())
	var pe *pipeline.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pipeline.CodeInvalidTarget, pe.Code)
}

func TestProbe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := pipeline.Target{BaseURL: srv.URL, Username: "u", Password: "p"}
	srv.Close()

	client := NewClient(target, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := client.Probe(context.Background())

	var pe *pipeline.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pipeline.CodeTargetUnreachable, pe.Code)
	assert.NotEmpty(t, pe.Detail)
}

func TestCreatePost(t *testing.T) {
	var gotPayload map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		json.NewEncoder(w).Encode(map[string]any{
			"id":   101,
			"link": "https://site.example.com/?p=101",
		})
	}))

	ref, err := client.CreatePost(context.Background(), pipeline.PostInput{
		Title:           "Garden Ponds",
		Content:         "<p>body</p>",
		Excerpt:         "short",
		Status:          "publish",
		MetaTitle:       "Garden Ponds Guide",
		MetaDescription: "All about ponds",
		FocusKeyword:    "garden pond",
		FeaturedMediaID: 55,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(101), ref.ID)
	assert.Equal(t, "https://site.example.com/?p=101", ref.URL)

	assert.Equal(t, "Garden Ponds", gotPayload["title"])
	assert.Equal(t, "publish", gotPayload["status"])
	assert.Equal(t, float64(55), gotPayload["featured_media"])
	// New posts keep the CMS-assigned publication date.
	assert.NotContains(t, gotPayload, "date")
	assert.NotContains(t, gotPayload, "modified")

	meta, ok := gotPayload["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Garden Ponds Guide", meta["seo_title"])
	assert.Equal(t, "All about ponds", meta["seo_description"])
	assert.Equal(t, "garden pond", meta["focus_keyword"])
}

func TestUpdatePost_BumpsDateAndModifiedTogether(t *testing.T) {
	var gotPayload map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/posts/7", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "link": "https://site.example.com/?p=7"})
	}))
	client.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	}

	ref, err := client.UpdatePost(context.Background(), 7, pipeline.PostInput{
		Title: "Rewritten", Content: "<p>new</p>", Status: "publish",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), ref.ID)

	assert.Equal(t, "2025-03-14T09:30:00", gotPayload["date"])
	assert.Equal(t, gotPayload["date"], gotPayload["modified"])
}

func TestSendPost_RemoteErrorBodySurfaced(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":"rest_invalid_param","message":"Invalid parameter: status"}`)
	}))

	_, err := client.CreatePost(context.Background(), pipeline.PostInput{Title: "t", Content: "c", Status: "bogus"})
	require.Error(t, err)

	var pe *pipeline.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pipeline.CodePublishFailed, pe.Code)
	assert.Contains(t, pe.Detail, "rest_invalid_param")
}

func TestFetchPost(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/posts/33", r.URL.Path)
		require.Equal(t, "edit", r.URL.Query().Get("context"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":      33,
			"link":    "https://site.example.com/old-post",
			"title":   map[string]string{"rendered": "Old Title"},
			"content": map[string]string{"rendered": "<p>old body</p>"},
		})
	}))

	post, err := client.FetchPost(context.Background(), 33)
	require.NoError(t, err)
	assert.Equal(t, int64(33), post.ID)
	assert.Equal(t, "Old Title", post.Title)
	assert.Equal(t, "<p>old body</p>", post.Content)
	assert.Equal(t, "https://site.example.com/old-post", post.URL)
}

func TestFetchPost_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"code":"rest_post_invalid_id"}`)
	}))

	_, err := client.FetchPost(context.Background(), 99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rest_post_invalid_id")
}

func TestUploadMedia(t *testing.T) {
	imageBytes := []byte("fake-jpeg-bytes")
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(imageBytes)
	}))
	defer imgSrv.Close()

	var gotBody []byte
	var gotDisposition, gotContentType string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wp-json/wp/v2/media", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		gotDisposition = r.Header.Get("Content-Disposition")
		gotContentType = r.Header.Get("Content-Type")
		json.NewEncoder(w).Encode(map[string]any{
			"id":         88,
			"source_url": "https://site.example.com/wp-content/uploads/featured.jpg",
		})
	}))
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	mediaID, mediaURL, err := client.UploadMedia(context.Background(), imgSrv.URL+"/image.jpg")
	require.NoError(t, err)

	assert.Equal(t, int64(88), mediaID)
	assert.Equal(t, "https://site.example.com/wp-content/uploads/featured.jpg", mediaURL)
	assert.Equal(t, imageBytes, gotBody)
	assert.Equal(t, "image/jpeg", gotContentType)
	assert.Equal(t, `attachment; filename="featured-1700000000.jpg"`, gotDisposition)
}

func TestUploadMedia_SourceFetchFails(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer imgSrv.Close()

	client, _ := newTestClient(t, http.NotFoundHandler())

	_, _, err := client.UploadMedia(context.Background(), imgSrv.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch image")
}

func TestUploadMedia_RemoteRejects(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	}))
	defer imgSrv.Close()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		fmt.Fprint(w, "file exceeds the maximum upload size")
	}))

	_, _, err := client.UploadMedia(context.Background(), imgSrv.URL+"/big.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum upload size")
}
