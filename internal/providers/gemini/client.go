// Package gemini wraps the Gemini generateContent API for text work: scene
// script writing and visual prompt derivation.
package gemini

import (
	"bytes"
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

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client provides a lightweight facade over Gemini so stages can focus on
// translating domain requests to API calls.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

var (
	_ pipeline.ScriptWriter  = (*Client)(nil)
	_ pipeline.PromptDeriver = (*Client)(nil)
)

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount   int     `json:"candidateCount,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with sensible timeouts will be
// created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string { return c.model }

// WriteScript asks the model for a JSON scene breakdown of the topic.
func (c *Client) WriteScript(ctx context.Context, req pipeline.ScriptRequest) (*pipeline.Script, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, pipeline.Invalid("empty topic")
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildScriptPrompt(req)}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:   1,
			ResponseMimeType: "application/json",
			Temperature:      0.7,
		},
	}

	text, err := c.generateText(ctx, payload)
	if err != nil {
		return nil, err
	}

	var script pipeline.Script
	if err := json.Unmarshal([]byte(stripFence(text)), &script); err != nil {
		return nil, pipeline.Rejected(http.StatusOK, "gemini returned malformed script json: "+err.Error())
	}
	if len(script.Scenes) == 0 {
		return nil, pipeline.Rejected(http.StatusOK, "gemini returned a script with no scenes")
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("scenes", len(script.Scenes)).
		Msg("gemini: script generated")
	return &script, nil
}

// DeriveImagePrompt turns one narrative line into a concise visual prompt.
func (c *Client) DeriveImagePrompt(ctx context.Context, narrative, locale string) (string, error) {
	narrative = strings.TrimSpace(narrative)
	if narrative == "" {
		return "", pipeline.Invalid("empty narrative")
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildDerivePrompt(narrative, locale)}},
		}},
		GenerationConfig: &geminiGenerationConfig{CandidateCount: 1, Temperature: 0.4},
	}

	text, err := c.generateText(ctx, payload)
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(stripFence(text))
	if prompt == "" {
		return "", pipeline.Rejected(http.StatusOK, "gemini returned an empty prompt")
	}
	return prompt, nil
}

func (c *Client) generateText(ctx context.Context, payload geminiGenerateContentRequest) (string, error) {
	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model))
	if err := c.invokeGemini(ctx, path, payload, &response); err != nil {
		return "", err
	}
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text, nil
			}
		}
	}
	return "", pipeline.Rejected(http.StatusOK, "gemini returned no text content")
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipeline.Unavailable(fmt.Errorf("invoke gemini: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return pipeline.Rejected(resp.StatusCode, apiErr.Error.Message)
		}
		if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
			return pipeline.Rejected(resp.StatusCode, trimmed)
		}
		return pipeline.Rejected(resp.StatusCode, fmt.Sprintf("gemini status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pipeline.Rejected(resp.StatusCode, "decode gemini response: "+err.Error())
	}
	return nil
}

func buildScriptPrompt(req pipeline.ScriptRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short visual story about %q as JSON.\n", strings.TrimSpace(req.Topic))
	fmt.Fprintf(&b, "Return exactly %d scenes.\n", req.SceneCount)
	b.WriteString(`Schema: {"title": string, "scenes": [{"narrative": string, "image_prompt": string}]}.`)
	b.WriteString("\nnarrative is one or two spoken sentences; image_prompt describes the scene visually for an image model.")
	if locale := strings.TrimSpace(req.Locale); locale != "" {
		b.WriteString("\nWrite the narratives in locale: ")
		b.WriteString(locale)
	}
	return b.String()
}

func buildDerivePrompt(narrative, locale string) string {
	var b strings.Builder
	b.WriteString("Turn this narration line into one concise stock photo search query of at most eight words.\n")
	b.WriteString("Reply with the query only, no quotes.\n")
	if locale := strings.TrimSpace(locale); locale != "" {
		b.WriteString("Query language: English. Narration locale: ")
		b.WriteString(locale)
		b.WriteString("\n")
	}
	b.WriteString("Narration: ")
	b.WriteString(narrative)
	return b.String()
}

// stripFence removes a markdown code fence if the model wrapped its reply
// in one.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
