// Package pexels wraps the Pexels photo search API.
package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyforge/internal/infra"
	"storyforge/internal/pipeline"
)

// Options controls how the Pexels client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client searches licensed stock photos.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

var _ pipeline.StockSearcher = (*Client)(nil)

type pexelsPhoto struct {
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Photographer string `json:"photographer"`
	Src          struct {
		Large2x  string `json:"large2x"`
		Large    string `json:"large"`
		Original string `json:"original"`
	} `json:"src"`
}

type pexelsSearchResponse struct {
	Photos []pexelsPhoto `json:"photos"`
}

type pexelsErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewClient constructs a Pexels client with sane defaults.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.pexels.com/v1"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}
}

// SearchPhotos returns up to count photos matching the query, largest
// rendition first.
func (c *Client) SearchPhotos(ctx context.Context, query string, count int) ([]pipeline.StockPhoto, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pipeline.Invalid("empty search query")
	}
	if count <= 0 {
		count = 1
	}
	if count > 80 {
		count = 80
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=%d", c.baseURL, url.QueryEscape(query), count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pipeline.Unavailable(fmt.Errorf("invoke pexels: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr pexelsErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return nil, pipeline.Rejected(resp.StatusCode, apiErr.Error)
		}
		if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
			return nil, pipeline.Rejected(resp.StatusCode, trimmed)
		}
		return nil, pipeline.Rejected(resp.StatusCode, fmt.Sprintf("pexels status %d", resp.StatusCode))
	}

	var response pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, pipeline.Rejected(resp.StatusCode, "decode pexels response: "+err.Error())
	}

	photos := make([]pipeline.StockPhoto, 0, len(response.Photos))
	for _, photo := range response.Photos {
		src := photo.Src.Large2x
		if src == "" {
			src = photo.Src.Large
		}
		if src == "" {
			src = photo.Src.Original
		}
		if src == "" {
			continue
		}
		photos = append(photos, pipeline.StockPhoto{
			URL:          src,
			Photographer: photo.Photographer,
			Width:        photo.Width,
			Height:       photo.Height,
		})
	}

	c.logger.Debug().
		Str("query", query).
		Int("photos", len(photos)).
		Msg("pexels: search completed")
	return photos, nil
}
