package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"storyforge/internal/domain"
)

// StageSceneImages is the aggregate stage name for per-scene image synthesis.
const StageSceneImages = "scene_images"

// ImageJobRequest asks the synthesis vendor for one image.
type ImageJobRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
}

// ImageArtifact is the normalized vendor image result.
type ImageArtifact struct {
	URL         string
	Width       int
	Height      int
	ContentType string
}

// ImageSynthesizer wraps the synchronous image generation vendor call.
// Implemented by the FAL.AI client.
type ImageSynthesizer interface {
	GenerateImage(ctx context.Context, req ImageJobRequest) (*ImageArtifact, error)
}

// ImageStage materializes one image per story scene. The orchestrator drives
// it scene by scene so each scene carries its own admission decision.
type ImageStage struct {
	synth       ImageSynthesizer
	artifacts   ArtifactSink
	aspectRatio string
}

// NewImageStage creates the scene image stage.
func NewImageStage(synth ImageSynthesizer, artifacts ArtifactSink, aspectRatio string) *ImageStage {
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}
	return &ImageStage{synth: synth, artifacts: artifacts, aspectRatio: aspectRatio}
}

// PaintScene generates and persists the image for one scene, updating the
// scene in place.
func (s *ImageStage) PaintScene(ctx context.Context, job *domain.PipelineJob, scene *domain.StoryScene) error {
	prompt := strings.TrimSpace(scene.ImagePrompt)
	if prompt == "" {
		prompt = strings.TrimSpace(scene.Narrative)
	}
	if prompt == "" {
		return WithStage(StageSceneImages, Invalid("scene has no prompt"))
	}

	artifact, err := s.synth.GenerateImage(ctx, ImageJobRequest{
		Prompt:      prompt,
		AspectRatio: s.aspectRatio,
		RequestID:   job.ID,
	})
	if err != nil {
		return WithStage(StageSceneImages, err)
	}
	if artifact == nil || artifact.URL == "" {
		return WithStage(StageSceneImages, Rejected(0, "vendor returned no image"))
	}

	if s.artifacts != nil {
		record := &domain.Artifact{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			IdentityID:  job.Identity().Key(),
			ContentType: domain.ArtifactTypeImage,
			ContentURL:  artifact.URL,
			Prompt:      prompt,
			Metadata: map[string]any{
				"scene_index": scene.Index,
				"width":       artifact.Width,
				"height":      artifact.Height,
			},
		}
		if err := s.artifacts.Save(ctx, record); err != nil {
			return WithStage(StageSceneImages, err)
		}
	}

	scene.ImageURL = artifact.URL
	return nil
}
