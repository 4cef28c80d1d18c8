package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"storyforge/internal/domain"
)

// StageCompose assembles the short's render manifest from the prior stages.
const StageCompose = "compose"

type composeScene struct {
	Index     int    `json:"index"`
	Narrative string `json:"narrative"`
	ImageURL  string `json:"image_url"`
}

type composeManifest struct {
	JobID    string         `json:"job_id"`
	Topic    string         `json:"topic"`
	Scenes   []composeScene `json:"scenes"`
	AudioURL string         `json:"audio_url"`
	Captions string         `json:"captions_url,omitempty"`
}

// ComposeStage writes the final composition manifest that the renderer
// consumes. Purely local; no vendor call.
type ComposeStage struct {
	artifacts ArtifactSink
	blobs     BlobStore
}

// NewComposeStage creates the composition stage.
func NewComposeStage(artifacts ArtifactSink, blobs BlobStore) *ComposeStage {
	return &ComposeStage{artifacts: artifacts, blobs: blobs}
}

func (s *ComposeStage) Name() string                     { return StageCompose }
func (s *ComposeStage) Optional() bool                   { return false }
func (s *ComposeStage) Bill() (domain.ContentKind, bool) { return "", false }

// Execute validates that every scene has an image and the narration exists,
// then persists the manifest.
func (s *ComposeStage) Execute(ctx context.Context, job *domain.PipelineJob) (string, error) {
	if len(job.Scenes) == 0 {
		return "", WithStage(StageCompose, MissingDependency("no scenes to compose"))
	}

	manifest := composeManifest{JobID: job.ID, Topic: job.Topic}
	for _, scene := range job.Scenes {
		if scene.ImageURL == "" {
			return "", WithStage(StageCompose, MissingDependency(fmt.Sprintf("scene %d has no image", scene.Index)))
		}
		manifest.Scenes = append(manifest.Scenes, composeScene{
			Index:     scene.Index,
			Narrative: scene.Narrative,
			ImageURL:  scene.ImageURL,
		})
	}

	audioStage := job.Stage(StageAudio)
	if audioStage == nil || audioStage.Status != domain.StageStatusSucceeded {
		return "", WithStage(StageCompose, MissingDependency("narration audio not available"))
	}
	manifest.AudioURL = audioStage.Output
	if captions := job.Stage(StageCaptions); captions != nil && captions.Status == domain.StageStatusSucceeded {
		manifest.Captions = captions.Output
	}

	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", WithStage(StageCompose, fmt.Errorf("encode manifest: %w", err))
	}

	key := fmt.Sprintf("shorts/%s/manifest.json", job.ID)
	if s.blobs != nil {
		stored, err := s.blobs.Write(ctx, key, payload)
		if err != nil {
			return "", WithStage(StageCompose, err)
		}
		key = stored
	}

	if s.artifacts != nil {
		record := &domain.Artifact{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			IdentityID:  job.Identity().Key(),
			ContentType: domain.ArtifactTypeVideo,
			ContentURL:  key,
			Prompt:      job.Topic,
			Metadata: map[string]any{
				"scene_count": len(manifest.Scenes),
				"kind":        "short_manifest",
			},
		}
		if err := s.artifacts.Save(ctx, record); err != nil {
			return "", WithStage(StageCompose, err)
		}
	}
	return key, nil
}

var _ Stage = (*ComposeStage)(nil)
