// Package falai wraps the FAL.AI synthesis API: synchronous image
// generation plus the queued video endpoint with its status handle.
package falai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyforge/internal/infra"
	"storyforge/internal/pipeline"
)

// Options controls how the FAL.AI client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	QueueURL   string
	ImageModel string
	VideoModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the FAL.AI HTTP surface. It normalizes
// vendor failures into the stage failure taxonomy so callers never see raw
// transport errors.
type Client struct {
	apiKey     string
	baseURL    string
	queueURL   string
	imageModel string
	videoModel string
	httpClient *http.Client
	logger     *infra.Logger
}

var (
	_ pipeline.ImageSynthesizer = (*Client)(nil)
	_ pipeline.VideoQueueClient = (*Client)(nil)
)

type falImageRequest struct {
	Prompt    string `json:"prompt"`
	ImageSize string `json:"image_size,omitempty"`
	NumImages int    `json:"num_images,omitempty"`
}

type falImage struct {
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}

type falImageResponse struct {
	Images []falImage `json:"images"`
}

type falVideoRequest struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
}

type falQueueSubmitResponse struct {
	RequestID string `json:"request_id"`
}

type falQueueStatusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Video  struct {
		URL string `json:"url"`
	} `json:"video"`
}

type falErrorResponse struct {
	Detail any `json:"detail"`
}

// NewClient constructs a FAL.AI client with sane defaults. A nil HTTP
// client gets a reusable one with a conservative timeout.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://fal.run"
	}
	queueURL := strings.TrimRight(opts.QueueURL, "/")
	if queueURL == "" {
		queueURL = "https://queue.fal.run"
	}
	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = "fal-ai/flux/schnell"
	}
	videoModel := opts.VideoModel
	if videoModel == "" {
		videoModel = "fal-ai/kling-video/v1.6/standard/image-to-video"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		queueURL:   queueURL,
		imageModel: imageModel,
		videoModel: videoModel,
		httpClient: client,
		logger:     logger,
	}
}

// GenerateImage runs the synchronous image model and returns the first
// rendered image.
func (c *Client) GenerateImage(ctx context.Context, req pipeline.ImageJobRequest) (*pipeline.ImageArtifact, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, pipeline.Invalid("empty image prompt")
	}
	payload := falImageRequest{
		Prompt:    prompt,
		ImageSize: imageSizeForAspect(req.AspectRatio),
		NumImages: 1,
	}
	var response falImageResponse
	if err := c.invoke(ctx, http.MethodPost, c.baseURL+"/"+c.imageModel, payload, &response); err != nil {
		return nil, err
	}
	if len(response.Images) == 0 {
		return nil, pipeline.Rejected(http.StatusOK, "fal returned no images")
	}
	img := response.Images[0]
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.imageModel).
		Msg("falai: image generated")
	return &pipeline.ImageArtifact{
		URL:         img.URL,
		Width:       img.Width,
		Height:      img.Height,
		ContentType: img.ContentType,
	}, nil
}

// SubmitVideo enqueues an image-to-video job and returns the vendor handle.
func (c *Client) SubmitVideo(ctx context.Context, req pipeline.VideoJobRequest) (string, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return "", pipeline.Invalid("empty source image url")
	}
	payload := falVideoRequest{Prompt: strings.TrimSpace(req.Prompt), ImageURL: req.ImageURL}
	var response falQueueSubmitResponse
	if err := c.invoke(ctx, http.MethodPost, c.queueURL+"/"+c.videoModel, payload, &response); err != nil {
		return "", err
	}
	if response.RequestID == "" {
		return "", pipeline.Rejected(http.StatusOK, "fal queue returned no request id")
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("fal_request_id", response.RequestID).
		Msg("falai: video submitted")
	return response.RequestID, nil
}

// VideoJobStatus observes one queued video job. COMPLETED resolves the
// result URL through the queue response endpoint.
func (c *Client) VideoJobStatus(ctx context.Context, handle string) (*pipeline.PollResult, error) {
	statusURL := fmt.Sprintf("%s/%s/requests/%s/status", c.queueURL, c.videoModel, handle)
	var status falQueueStatusResponse
	if err := c.invoke(ctx, http.MethodGet, statusURL, nil, &status); err != nil {
		return nil, err
	}
	switch strings.ToUpper(status.Status) {
	case "IN_QUEUE":
		return &pipeline.PollResult{State: pipeline.PollStateQueued}, nil
	case "IN_PROGRESS":
		return &pipeline.PollResult{State: pipeline.PollStateProcessing}, nil
	case "COMPLETED":
		resultURL := fmt.Sprintf("%s/%s/requests/%s", c.queueURL, c.videoModel, handle)
		var result falQueueStatusResponse
		if err := c.invoke(ctx, http.MethodGet, resultURL, nil, &result); err != nil {
			return nil, err
		}
		if result.Video.URL == "" {
			return &pipeline.PollResult{State: pipeline.PollStateFailed, Message: "fal completed without a video url"}, nil
		}
		return &pipeline.PollResult{State: pipeline.PollStateDone, Output: result.Video.URL}, nil
	default:
		message := status.Error
		if message == "" {
			message = "fal reported status " + status.Status
		}
		return &pipeline.PollResult{State: pipeline.PollStateFailed, Message: message}, nil
	}
}

func (c *Client) invoke(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Key "+c.apiKey)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipeline.Unavailable(fmt.Errorf("invoke fal: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return pipeline.Rejected(resp.StatusCode, decodeFalError(resp.Body, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pipeline.Rejected(resp.StatusCode, "decode fal response: "+err.Error())
	}
	return nil
}

func decodeFalError(body io.Reader, status int) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	var apiErr falErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Detail != nil {
		switch detail := apiErr.Detail.(type) {
		case string:
			return detail
		default:
			if encoded, err := json.Marshal(detail); err == nil {
				return string(encoded)
			}
		}
	}
	if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("fal status %d", status)
}

func imageSizeForAspect(aspect string) string {
	switch strings.TrimSpace(aspect) {
	case "9:16":
		return "portrait_16_9"
	case "4:3":
		return "landscape_4_3"
	case "1:1", "square":
		return "square_hd"
	default:
		return "landscape_16_9"
	}
}
