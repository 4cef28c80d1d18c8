package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storyforge/internal/domain"
)

// StageAudio synthesizes the narration track for a short.
const StageAudio = "audio"

// SpeechRequest asks the speech vendor to voice a narration.
type SpeechRequest struct {
	Text   string
	Voice  string
	Locale string
}

// SpeechAudio is the synthesized narration payload.
type SpeechAudio struct {
	Data        []byte
	ContentType string
}

// SpeechSynthesizer wraps the text-to-speech vendor call. Implemented by
// the Azure Speech client.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechAudio, error)
}

// AudioStage voices the concatenated scene narratives and stores the track.
type AudioStage struct {
	synth     SpeechSynthesizer
	artifacts ArtifactSink
	blobs     BlobStore
	voice     string
}

// NewAudioStage creates the narration stage.
func NewAudioStage(synth SpeechSynthesizer, artifacts ArtifactSink, blobs BlobStore, voice string) *AudioStage {
	return &AudioStage{synth: synth, artifacts: artifacts, blobs: blobs, voice: voice}
}

func (s *AudioStage) Name() string                     { return StageAudio }
func (s *AudioStage) Optional() bool                   { return false }
func (s *AudioStage) Bill() (domain.ContentKind, bool) { return "", false }

// Execute synthesizes the narration and returns the stored audio reference.
func (s *AudioStage) Execute(ctx context.Context, job *domain.PipelineJob) (string, error) {
	var lines []string
	for _, scene := range job.Scenes {
		if text := strings.TrimSpace(scene.Narrative); text != "" {
			lines = append(lines, text)
		}
	}
	if len(lines) == 0 {
		return "", WithStage(StageAudio, MissingDependency("no narration text to voice"))
	}

	audio, err := s.synth.Synthesize(ctx, SpeechRequest{
		Text:   strings.Join(lines, "\n"),
		Voice:  s.voice,
		Locale: job.Locale,
	})
	if err != nil {
		return "", WithStage(StageAudio, err)
	}
	if audio == nil || len(audio.Data) == 0 {
		return "", WithStage(StageAudio, Rejected(0, "vendor returned no audio"))
	}

	key := fmt.Sprintf("audio/%s/narration%s", job.ID, extensionForAudio(audio.ContentType))
	if s.blobs != nil {
		stored, err := s.blobs.Write(ctx, key, audio.Data)
		if err != nil {
			return "", WithStage(StageAudio, err)
		}
		key = stored
	}

	if s.artifacts != nil {
		record := &domain.Artifact{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			IdentityID:  job.Identity().Key(),
			ContentType: domain.ArtifactTypeAudio,
			ContentURL:  key,
			Metadata: map[string]any{
				"voice": s.voice,
				"bytes": len(audio.Data),
			},
		}
		if err := s.artifacts.Save(ctx, record); err != nil {
			return "", WithStage(StageAudio, err)
		}
	}
	return key, nil
}

func extensionForAudio(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".mp3"
	}
}

var _ Stage = (*AudioStage)(nil)
