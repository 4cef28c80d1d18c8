// Package assemblyai wraps the AssemblyAI transcription API: submit an
// audio URL, then poll the transcript until terminal.
package assemblyai

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

// Options controls how the AssemblyAI client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client drives asynchronous transcription jobs.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

var _ pipeline.TranscriptClient = (*Client)(nil)

type transcriptRequest struct {
	AudioURL string `json:"audio_url"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

// NewClient constructs an AssemblyAI client with sane defaults.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.assemblyai.com/v2"
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

// SubmitTranscript enqueues transcription of the audio at audioURL and
// returns the transcript id.
func (c *Client) SubmitTranscript(ctx context.Context, audioURL string) (string, error) {
	if strings.TrimSpace(audioURL) == "" {
		return "", pipeline.Invalid("empty audio url")
	}
	var response transcriptResponse
	if err := c.invoke(ctx, http.MethodPost, c.baseURL+"/transcript", transcriptRequest{AudioURL: audioURL}, &response); err != nil {
		return "", err
	}
	if response.ID == "" {
		return "", pipeline.Rejected(http.StatusOK, "assemblyai returned no transcript id")
	}
	c.logger.Debug().
		Str("transcript_id", response.ID).
		Msg("assemblyai: transcript submitted")
	return response.ID, nil
}

// TranscriptStatus observes one transcript. Done carries the transcript
// text as output.
func (c *Client) TranscriptStatus(ctx context.Context, id string) (*pipeline.PollResult, error) {
	var response transcriptResponse
	if err := c.invoke(ctx, http.MethodGet, c.baseURL+"/transcript/"+id, nil, &response); err != nil {
		return nil, err
	}
	switch response.Status {
	case "queued":
		return &pipeline.PollResult{State: pipeline.PollStateQueued}, nil
	case "processing":
		return &pipeline.PollResult{State: pipeline.PollStateProcessing}, nil
	case "completed":
		return &pipeline.PollResult{State: pipeline.PollStateDone, Output: response.Text}, nil
	case "error":
		message := response.Error
		if message == "" {
			message = "assemblyai reported an unspecified transcription error"
		}
		return &pipeline.PollResult{State: pipeline.PollStateFailed, Message: message}, nil
	default:
		return &pipeline.PollResult{State: pipeline.PollStateFailed, Message: "assemblyai reported status " + response.Status}, nil
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
	req.Header.Set("Authorization", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipeline.Unavailable(fmt.Errorf("invoke assemblyai: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr transcriptResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return pipeline.Rejected(resp.StatusCode, apiErr.Error)
		}
		if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
			return pipeline.Rejected(resp.StatusCode, trimmed)
		}
		return pipeline.Rejected(resp.StatusCode, fmt.Sprintf("assemblyai status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pipeline.Rejected(resp.StatusCode, "decode assemblyai response: "+err.Error())
	}
	return nil
}
