// Package wordpress implements the publication adapter for WordPress-style
// REST APIs: handshake probe, post create/update, and media upload.
package wordpress

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/writgo/content-engine/internal/pipeline"
)

const (
	postsPath = "/wp-json/wp/v2/posts"
	mediaPath = "/wp-json/wp/v2/media"
	rootPath  = "/wp-json/"

	maxErrorBody = 4096
)

// Client talks to one WordPress site. Construct via Factory per job since
// credentials differ per project.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

var _ pipeline.Publisher = (*Client)(nil)

// NewClient builds a client for one target site using Basic auth.
func NewClient(target pipeline.Target, logger *slog.Logger) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(target.Username + ":" + target.Password))
	return &Client{
		baseURL:    strings.TrimRight(target.BaseURL, "/"),
		authHeader: "Basic " + creds,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

// Factory returns a pipeline.PublisherFactory bound to the given logger.
func Factory(logger *slog.Logger) pipeline.PublisherFactory {
	return func(target pipeline.Target) pipeline.Publisher {
		return NewClient(target, logger)
	}
}

// Probe checks the target is reachable and identifies itself as a WordPress
// REST API before any stage runs.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+rootPath, nil)
	if err != nil {
		return fmt.Errorf("new probe request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipeline.NewError(pipeline.CodeTargetUnreachable,
			"target site %s is unreachable", c.baseURL).WithDetail(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return pipeline.NewError(pipeline.CodeInvalidTarget,
			"target site %s answered %s to the API handshake", c.baseURL, resp.Status)
	}

	var handshake struct {
		Namespaces []string `json:"namespaces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&handshake); err != nil {
		return pipeline.NewError(pipeline.CodeInvalidTarget,
			"target site %s does not expose a WordPress REST API", c.baseURL)
	}
	for _, ns := range handshake.Namespaces {
		if ns == "wp/v2" {
			return nil
		}
	}
	return pipeline.NewError(pipeline.CodeInvalidTarget,
		"target site %s is not a WordPress installation", c.baseURL)
}

// postPayload is the create/update request body.
type postPayload struct {
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Excerpt       string            `json:"excerpt,omitempty"`
	Status        string            `json:"status"`
	FeaturedMedia int64             `json:"featured_media,omitempty"`
	Date          string            `json:"date,omitempty"`
	Modified      string            `json:"modified,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
}

type postResponse struct {
	ID    int64  `json:"id"`
	Link  string `json:"link"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
}

// FetchPost loads an existing post, used as source material for rewrites.
func (c *Client) FetchPost(ctx context.Context, postID int64) (*pipeline.RemotePost, error) {
	url := fmt.Sprintf("%s%s/%d?context=edit", c.baseURL, postsPath, postID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new fetch request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch post %d: %w", postID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch post %d: %s: %s", postID, resp.Status, readErrorBody(resp.Body))
	}

	var post postResponse
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, fmt.Errorf("decode post %d: %w", postID, err)
	}
	return &pipeline.RemotePost{
		ID:      post.ID,
		Title:   post.Title.Rendered,
		Content: post.Content.Rendered,
		URL:     post.Link,
	}, nil
}

// CreatePost publishes a new post.
func (c *Client) CreatePost(ctx context.Context, input pipeline.PostInput) (*pipeline.PostRef, error) {
	return c.sendPost(ctx, c.baseURL+postsPath, buildPayload(input, time.Time{}))
}

// UpdatePost overwrites an existing post, forcing both date and modified to
// now so a rewritten post visibly bumps to the top of a chronological feed.
// SEO meta fields are overwritten unconditionally, no merge.
func (c *Client) UpdatePost(ctx context.Context, postID int64, input pipeline.PostInput) (*pipeline.PostRef, error) {
	url := fmt.Sprintf("%s%s/%d", c.baseURL, postsPath, postID)
	return c.sendPost(ctx, url, buildPayload(input, c.now()))
}

func buildPayload(input pipeline.PostInput, bump time.Time) postPayload {
	payload := postPayload{
		Title:         input.Title,
		Content:       input.Content,
		Excerpt:       input.Excerpt,
		Status:        input.Status,
		FeaturedMedia: input.FeaturedMediaID,
		Meta: map[string]string{
			"seo_title":       input.MetaTitle,
			"seo_description": input.MetaDescription,
			"focus_keyword":   input.FocusKeyword,
		},
	}
	if !bump.IsZero() {
		// The same instant for both fields: they must never diverge.
		stamp := bump.Format("2006-01-02T15:04:05")
		payload.Date = stamp
		payload.Modified = stamp
	}
	return payload
}

func (c *Client) sendPost(ctx context.Context, url string, payload postPayload) (*pipeline.PostRef, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal post payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new post request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipeline.NewError(pipeline.CodePublishFailed,
			"request to the target site failed").WithDetail(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// The remote error body verbatim: CMS-side validation errors are
		// useless without it.
		return nil, pipeline.NewError(pipeline.CodePublishFailed,
			"target site answered %s", resp.Status).WithDetail(readErrorBody(resp.Body))
	}

	var post postResponse
	if err := json.NewDecoder(resp.Body).Decode(&post); err != nil {
		return nil, fmt.Errorf("decode publish response: %w", err)
	}

	c.logger.Info("Post published",
		slog.Int64("remote_id", post.ID),
		slog.String("remote_url", post.Link),
	)
	return &pipeline.PostRef{ID: post.ID, URL: post.Link}, nil
}

// UploadMedia fetches the image bytes and re-posts them as a binary
// attachment, returning the remote media id for the featured-image field.
func (c *Client) UploadMedia(ctx context.Context, imageURL string) (int64, string, error) {
	imgReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, "", fmt.Errorf("new image request: %w", err)
	}
	imgResp, err := c.httpClient.Do(imgReq)
	if err != nil {
		return 0, "", fmt.Errorf("fetch image: %w", err)
	}
	defer imgResp.Body.Close()
	if imgResp.StatusCode >= http.StatusBadRequest {
		return 0, "", fmt.Errorf("fetch image: %s", imgResp.Status)
	}
	data, err := io.ReadAll(imgResp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read image: %w", err)
	}

	filename := fmt.Sprintf("featured-%d.jpg", c.now().Unix())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+mediaPath, bytes.NewReader(data))
	if err != nil {
		return 0, "", fmt.Errorf("new media request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return 0, "", fmt.Errorf("upload media: %s: %s", resp.Status, readErrorBody(resp.Body))
	}

	var media struct {
		ID        int64  `json:"id"`
		SourceURL string `json:"source_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return 0, "", fmt.Errorf("decode media response: %w", err)
	}

	c.logger.Info("Media uploaded",
		slog.Int64("media_id", media.ID),
		slog.String("filename", filename),
	)
	return media.ID, media.SourceURL, nil
}

func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
