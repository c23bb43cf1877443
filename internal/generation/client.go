// Package generation wraps the external text/image generation API. The
// capability itself is a third-party boundary; this client only handles
// transport, prompt assembly helpers, and response decoding.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/writgo/content-engine/internal/pipeline"
)

// Config holds generation API settings.
type Config struct {
	Endpoint   string
	APIKey     string
	TextModel  string
	ImageModel string
	ImageSize  string
	Timeout    time.Duration
}

// Client talks to an OpenAI-compatible generation API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

var _ pipeline.Generator = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = "1024x1024"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GenerateText sends the prompt as a single user message and returns the
// first completion choice.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.cfg.TextModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/v1/chat/completions", body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// GenerateImage returns a URL to a generated image.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.cfg.ImageModel,
		"prompt": prompt,
		"n":      1,
		"size":   c.cfg.ImageSize,
	})
	if err != nil {
		return "", fmt.Errorf("marshal image payload: %w", err)
	}

	var parsed struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/v1/images/generations", body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Data) == 0 || parsed.Data[0].URL == "" {
		return "", fmt.Errorf("image response has no url")
	}
	return parsed.Data[0].URL, nil
}

// RankPages delegates relevance scoring to the model: it receives a numbered
// page list plus the keywords and must answer with a JSON array of indexes,
// most relevant first.
func (c *Client) RankPages(ctx context.Context, keywords []string, pages []pipeline.Page, topK int) ([]pipeline.Page, error) {
	if len(pages) == 0 || topK <= 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Rank these pages by topical relevance to the keywords: %s.\n", strings.Join(keywords, ", "))
	fmt.Fprintf(&b, "Answer with a JSON array of at most %d page numbers, most relevant first, and nothing else. Only include genuinely relevant pages.\n\n", topK)
	for i, p := range pages {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, title, p.URL)
	}

	answer, err := c.GenerateText(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("rank pages: %w", err)
	}

	indexes, err := parseIndexList(answer)
	if err != nil {
		return nil, fmt.Errorf("parse ranking answer: %w", err)
	}

	ranked := make([]pipeline.Page, 0, topK)
	for _, idx := range indexes {
		if idx < 1 || idx > len(pages) {
			continue
		}
		ranked = append(ranked, pages[idx-1])
		if len(ranked) == topK {
			break
		}
	}
	return ranked, nil
}

// post issues a JSON request and decodes the response into out. Non-2xx
// responses surface the remote error body.
func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	url := strings.TrimRight(c.cfg.Endpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Generation API call",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("generation API %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode generation response: %w", err)
	}
	return nil
}

// parseIndexList reads a JSON int array, tolerating code fences around it.
func parseIndexList(answer string) ([]int, error) {
	cleaned := strings.TrimSpace(answer)
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in %q", truncate(answer, 80))
	}

	var indexes []int
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &indexes); err != nil {
		// Some models answer with quoted numbers.
		var asStrings []string
		if err2 := json.Unmarshal([]byte(cleaned[start:end+1]), &asStrings); err2 != nil {
			return nil, err
		}
		for _, s := range asStrings {
			n, convErr := strconv.Atoi(strings.TrimSpace(s))
			if convErr != nil {
				return nil, err
			}
			indexes = append(indexes, n)
		}
	}
	return indexes, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
