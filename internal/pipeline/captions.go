package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"storyforge/internal/domain"
)

// StageCaptions transcribes the narration track into caption text. The
// stage is optional; its failure never aborts a short.
const StageCaptions = "captions"

// TranscriptClient wraps the asynchronous transcription vendor: submit the
// audio, then observe status until terminal. Implemented by the AssemblyAI
// client.
type TranscriptClient interface {
	SubmitTranscript(ctx context.Context, audioURL string) (string, error)
	TranscriptStatus(ctx context.Context, id string) (*PollResult, error)
}

// CaptionStage produces captions from the audio stage's output.
type CaptionStage struct {
	client    TranscriptClient
	artifacts ArtifactSink
	blobs     BlobStore
	poller    Poller
}

// NewCaptionStage creates the captioning stage.
func NewCaptionStage(client TranscriptClient, artifacts ArtifactSink, blobs BlobStore, poller Poller) *CaptionStage {
	return &CaptionStage{client: client, artifacts: artifacts, blobs: blobs, poller: poller}
}

func (s *CaptionStage) Name() string                     { return StageCaptions }
func (s *CaptionStage) Optional() bool                   { return true }
func (s *CaptionStage) Bill() (domain.ContentKind, bool) { return "", false }

// Execute submits the narration for transcription and polls until done.
func (s *CaptionStage) Execute(ctx context.Context, job *domain.PipelineJob) (string, error) {
	audioStage := job.Stage(StageAudio)
	if audioStage == nil || audioStage.Status != domain.StageStatusSucceeded || audioStage.Output == "" {
		return "", WithStage(StageCaptions, MissingDependency("narration audio not available"))
	}

	transcriptID, err := s.client.SubmitTranscript(ctx, audioStage.Output)
	if err != nil {
		return "", WithStage(StageCaptions, err)
	}

	var text string
	err = s.poller.Wait(ctx, func(ctx context.Context) (bool, error) {
		result, err := s.client.TranscriptStatus(ctx, transcriptID)
		if err != nil {
			return false, err
		}
		switch result.State {
		case PollStateDone:
			text = result.Output
			return true, nil
		case PollStateFailed:
			return false, Rejected(0, result.Message)
		default:
			return false, nil
		}
	})
	if err != nil {
		return "", WithStage(StageCaptions, err)
	}
	if text == "" {
		return "", WithStage(StageCaptions, Rejected(0, "vendor returned empty transcript"))
	}

	key := fmt.Sprintf("captions/%s/transcript.txt", job.ID)
	if s.blobs != nil {
		stored, err := s.blobs.Write(ctx, key, []byte(text))
		if err != nil {
			return "", WithStage(StageCaptions, err)
		}
		key = stored
	}

	if s.artifacts != nil {
		record := &domain.Artifact{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			IdentityID:  job.Identity().Key(),
			ContentType: domain.ArtifactTypeText,
			ContentURL:  key,
			Metadata: map[string]any{
				"transcript_id": transcriptID,
			},
		}
		if err := s.artifacts.Save(ctx, record); err != nil {
			return "", WithStage(StageCaptions, err)
		}
	}
	return key, nil
}

var _ Stage = (*CaptionStage)(nil)
