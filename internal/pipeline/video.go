package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storyforge/internal/domain"
)

// StageSceneVideos is the aggregate stage name for per-scene video synthesis.
const StageSceneVideos = "scene_videos"

// VideoJobRequest asks the synthesis vendor to animate a scene image.
type VideoJobRequest struct {
	Prompt    string
	ImageURL  string
	RequestID string
}

// VideoQueueClient wraps the vendor's asynchronous video queue: submit a
// job, then observe its status until terminal. Implemented by the FAL.AI
// client.
type VideoQueueClient interface {
	SubmitVideo(ctx context.Context, req VideoJobRequest) (string, error)
	VideoJobStatus(ctx context.Context, handle string) (*PollResult, error)
}

// VideoStage animates one scene at a time through the vendor queue,
// polling with the shared bounded poller.
type VideoStage struct {
	queue     VideoQueueClient
	artifacts ArtifactSink
	poller    Poller
}

// NewVideoStage creates the scene video stage.
func NewVideoStage(queue VideoQueueClient, artifacts ArtifactSink, poller Poller) *VideoStage {
	return &VideoStage{queue: queue, artifacts: artifacts, poller: poller}
}

// AnimateScene submits the scene's image for animation and polls until the
// vendor reports a terminal state. The scene's image must already exist.
func (s *VideoStage) AnimateScene(ctx context.Context, job *domain.PipelineJob, scene *domain.StoryScene) error {
	if strings.TrimSpace(scene.ImageURL) == "" {
		return WithStage(StageSceneVideos, MissingDependency(fmt.Sprintf("scene %d has no image to animate", scene.Index)))
	}

	handle, err := s.queue.SubmitVideo(ctx, VideoJobRequest{
		Prompt:    scene.ImagePrompt,
		ImageURL:  scene.ImageURL,
		RequestID: job.ID,
	})
	if err != nil {
		return WithStage(StageSceneVideos, err)
	}

	var videoURL string
	err = s.poller.Wait(ctx, func(ctx context.Context) (bool, error) {
		result, err := s.queue.VideoJobStatus(ctx, handle)
		if err != nil {
			return false, err
		}
		switch result.State {
		case PollStateDone:
			videoURL = result.Output
			return true, nil
		case PollStateFailed:
			return false, Rejected(0, result.Message)
		default:
			return false, nil
		}
	})
	if err != nil {
		return WithStage(StageSceneVideos, err)
	}
	if videoURL == "" {
		return WithStage(StageSceneVideos, Rejected(0, "vendor returned no video"))
	}

	if s.artifacts != nil {
		record := &domain.Artifact{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			IdentityID:  job.Identity().Key(),
			ContentType: domain.ArtifactTypeVideo,
			ContentURL:  videoURL,
			Prompt:      scene.ImagePrompt,
			Metadata: map[string]any{
				"scene_index":   scene.Index,
				"vendor_handle": handle,
			},
		}
		if err := s.artifacts.Save(ctx, record); err != nil {
			return WithStage(StageSceneVideos, err)
		}
	}

	scene.VideoURL = videoURL
	return nil
}
