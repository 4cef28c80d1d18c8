// Package speech wraps the Azure Cognitive Services text-to-speech
// endpoint.
package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storyforge/internal/infra"
	"storyforge/internal/pipeline"
)

// Options controls how the Azure Speech client is configured.
type Options struct {
	APIKey       string
	Region       string
	BaseURL      string
	Voice        string
	OutputFormat string
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client synthesizes narration audio through Azure TTS.
type Client struct {
	apiKey       string
	endpoint     string
	voice        string
	outputFormat string
	contentType  string
	httpClient   *http.Client
	logger       *infra.Logger
}

var _ pipeline.SpeechSynthesizer = (*Client)(nil)

// NewClient constructs an Azure Speech client with sane defaults. BaseURL
// overrides the region-derived endpoint, which tests rely on.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	endpoint := strings.TrimRight(opts.BaseURL, "/")
	if endpoint == "" {
		region := opts.Region
		if region == "" {
			region = "eastus"
		}
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	}
	voice := opts.Voice
	if voice == "" {
		voice = "en-US-JennyNeural"
	}
	format := opts.OutputFormat
	if format == "" {
		format = "audio-24khz-96kbitrate-mono-mp3"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		endpoint:     endpoint,
		voice:        voice,
		outputFormat: format,
		contentType:  contentTypeForFormat(format),
		httpClient:   client,
		logger:       logger,
	}
}

// Synthesize voices the text with the configured neural voice and returns
// the raw audio bytes.
func (c *Client) Synthesize(ctx context.Context, req pipeline.SpeechRequest) (*pipeline.SpeechAudio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, pipeline.Invalid("empty narration text")
	}
	voice := req.Voice
	if voice == "" {
		voice = c.voice
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(buildSSML(text, voice, req.Locale)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", c.outputFormat)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pipeline.Unavailable(fmt.Errorf("invoke azure speech: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := strings.TrimSpace(string(data))
		if message == "" {
			message = fmt.Sprintf("azure speech status %d", resp.StatusCode)
		}
		return nil, pipeline.Rejected(resp.StatusCode, message)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.Unavailable(fmt.Errorf("read audio: %w", err))
	}
	if len(audio) == 0 {
		return nil, pipeline.Rejected(resp.StatusCode, "azure speech returned empty audio")
	}

	c.logger.Debug().
		Str("voice", voice).
		Int("bytes", len(audio)).
		Msg("speech: narration synthesized")
	return &pipeline.SpeechAudio{Data: audio, ContentType: c.contentType}, nil
}

func buildSSML(text, voice, locale string) string {
	lang := strings.TrimSpace(locale)
	if lang == "" {
		lang = "en-US"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<speak version="1.0" xml:lang=%q>`, lang)
	fmt.Fprintf(&b, `<voice name=%q>`, voice)
	b.WriteString(escapeXML(text))
	b.WriteString("</voice></speak>")
	return b.String()
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

func contentTypeForFormat(format string) string {
	switch {
	case strings.Contains(format, "mp3"):
		return "audio/mpeg"
	case strings.Contains(format, "ogg"):
		return "audio/ogg"
	case strings.Contains(format, "riff"), strings.Contains(format, "pcm"):
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
