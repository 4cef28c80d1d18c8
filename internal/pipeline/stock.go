package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storyforge/internal/domain"
)

// StageStockImages fetches licensed stock photos for short scenes.
const StageStockImages = "stock_images"

// StockPhoto is one search hit from the stock photo vendor.
type StockPhoto struct {
	URL          string
	Photographer string
	Width        int
	Height       int
}

// StockSearcher wraps the stock photo search vendor call. Implemented by
// the Pexels client.
type StockSearcher interface {
	SearchPhotos(ctx context.Context, query string, count int) ([]StockPhoto, error)
}

// StockImageStage assigns one stock photo to every scene of a short. The
// whole fetch is billed as a single image admission per job.
type StockImageStage struct {
	search    StockSearcher
	artifacts ArtifactSink
}

// NewStockImageStage creates the stock photo stage.
func NewStockImageStage(search StockSearcher, artifacts ArtifactSink) *StockImageStage {
	return &StockImageStage{search: search, artifacts: artifacts}
}

func (s *StockImageStage) Name() string                     { return StageStockImages }
func (s *StockImageStage) Optional() bool                   { return false }
func (s *StockImageStage) Bill() (domain.ContentKind, bool) { return domain.ContentKindImage, true }

// Execute searches once per job and distributes the hits across scenes in
// ascending order, reusing the last photo when there are fewer hits than
// scenes.
func (s *StockImageStage) Execute(ctx context.Context, job *domain.PipelineJob) (string, error) {
	if len(job.Scenes) == 0 {
		return "", WithStage(StageStockImages, MissingDependency("no scenes to fetch photos for"))
	}

	query := strings.TrimSpace(job.Topic)
	if query == "" {
		return "", WithStage(StageStockImages, Invalid("topic is required for photo search"))
	}

	photos, err := s.search.SearchPhotos(ctx, query, len(job.Scenes))
	if err != nil {
		return "", WithStage(StageStockImages, err)
	}
	if len(photos) == 0 {
		return "", WithStage(StageStockImages, Rejected(0, fmt.Sprintf("no stock photos found for %q", query)))
	}

	for i := range job.Scenes {
		scene := &job.Scenes[i]
		photo := photos[min(i, len(photos)-1)]
		scene.ImageURL = photo.URL
		scene.ImageStatus = domain.StageStatusSucceeded

		if s.artifacts != nil {
			record := &domain.Artifact{
				ID:          uuid.NewString(),
				JobID:       job.ID,
				IdentityID:  job.Identity().Key(),
				ContentType: domain.ArtifactTypeImage,
				ContentURL:  photo.URL,
				Prompt:      scene.ImagePrompt,
				Metadata: map[string]any{
					"scene_index":  scene.Index,
					"photographer": photo.Photographer,
					"source":       "stock",
				},
			}
			if err := s.artifacts.Save(ctx, record); err != nil {
				return "", WithStage(StageStockImages, err)
			}
		}
	}
	return fmt.Sprintf("photos:%d", len(photos)), nil
}

var _ Stage = (*StockImageStage)(nil)
