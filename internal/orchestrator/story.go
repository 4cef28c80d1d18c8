package orchestrator

import (
	"context"
	"fmt"

	"storyforge/internal/domain"
	"storyforge/internal/pipeline"
)

// runStory executes the story flow: script once, then per-scene images and
// optionally per-scene videos, each scene admitted individually so one
// denial never starves its siblings.
func (o *Orchestrator) runStory(ctx context.Context, job *domain.PipelineJob) error {
	if err := o.runStage(ctx, job, o.stages.Script); err != nil {
		if storageFailure(err) || ctx.Err() != nil {
			job.Status = domain.JobStatusFailed
			job.Error = pipeline.Reason(err)
			return ctx.Err()
		}
		job.Status = domain.JobStatusFailed
		job.Error = pipeline.Reason(err)
		return nil
	}

	if err := o.paintScenes(ctx, job); err != nil {
		return err
	}
	if job.RenderVideos && job.Status != domain.JobStatusFailed {
		if err := o.animateScenes(ctx, job); err != nil {
			return err
		}
	}
	o.settleStory(job)
	return nil
}

func (o *Orchestrator) paintScenes(ctx context.Context, job *domain.PipelineJob) error {
	result := job.Stage(pipeline.StageSceneImages)
	attemptedAt := o.now()
	result.Status = domain.StageStatusRunning
	result.AttemptedAt = &attemptedAt
	if err := o.persist(ctx, job); err != nil {
		return err
	}

	succeeded := 0
	for i := range job.Scenes {
		scene := &job.Scenes[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		admitted, err := o.ledger.RecordJobAttempt(ctx, job.Identity(), job.ID, domain.ContentKindImage)
		if err != nil {
			scene.ImageStatus = domain.StageStatusFailed
			scene.ImageError = pipeline.Reason(err)
			o.failStage(result, err)
			job.Status = domain.JobStatusFailed
			job.Error = result.Error
			return o.persist(ctx, job)
		}
		if !admitted {
			denial := pipeline.LimitDenied(domain.ContentKindImage)
			scene.ImageStatus = domain.StageStatusFailed
			scene.ImageError = denial.Message
			o.logger.Info().Str("job_id", job.ID).Int("scene", scene.Index).Msg("scene image denied by usage limit")
		} else if err := o.stages.Imager.PaintScene(ctx, job, scene); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			scene.ImageStatus = domain.StageStatusFailed
			scene.ImageError = pipeline.Reason(err)
			o.logger.Warn().Err(err).Str("job_id", job.ID).Int("scene", scene.Index).Msg("scene image failed")
		} else {
			scene.ImageStatus = domain.StageStatusSucceeded
			succeeded++
		}
		if err := o.persist(ctx, job); err != nil {
			return err
		}
	}

	if succeeded == 0 {
		result.Status = domain.StageStatusFailed
		result.Reason = string(pipeline.FailureLimitReached)
		if firstSceneError(job, sceneImage) != "" {
			result.Error = firstSceneError(job, sceneImage)
		}
	} else {
		result.Status = domain.StageStatusSucceeded
		result.Output = fmt.Sprintf("%d/%d scenes", succeeded, len(job.Scenes))
	}
	return nil
}

func (o *Orchestrator) animateScenes(ctx context.Context, job *domain.PipelineJob) error {
	result := job.Stage(pipeline.StageSceneVideos)
	attemptedAt := o.now()
	result.Status = domain.StageStatusRunning
	result.AttemptedAt = &attemptedAt
	if err := o.persist(ctx, job); err != nil {
		return err
	}

	succeeded := 0
	for i := range job.Scenes {
		scene := &job.Scenes[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		if scene.ImageStatus != domain.StageStatusSucceeded {
			missing := pipeline.MissingDependency(fmt.Sprintf("scene %d has no image to animate", scene.Index))
			scene.VideoStatus = domain.StageStatusFailed
			scene.VideoError = missing.Message
			continue
		}
		admitted, err := o.ledger.RecordJobAttempt(ctx, job.Identity(), job.ID, domain.ContentKindVideo)
		if err != nil {
			scene.VideoStatus = domain.StageStatusFailed
			scene.VideoError = pipeline.Reason(err)
			o.failStage(result, err)
			job.Status = domain.JobStatusFailed
			job.Error = result.Error
			return o.persist(ctx, job)
		}
		if !admitted {
			denial := pipeline.LimitDenied(domain.ContentKindVideo)
			scene.VideoStatus = domain.StageStatusFailed
			scene.VideoError = denial.Message
			o.logger.Info().Str("job_id", job.ID).Int("scene", scene.Index).Msg("scene video denied by usage limit")
		} else if err := o.stages.Animator.AnimateScene(ctx, job, scene); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			scene.VideoStatus = domain.StageStatusFailed
			scene.VideoError = pipeline.Reason(err)
			o.logger.Warn().Err(err).Str("job_id", job.ID).Int("scene", scene.Index).Msg("scene video failed")
		} else {
			scene.VideoStatus = domain.StageStatusSucceeded
			succeeded++
		}
		if err := o.persist(ctx, job); err != nil {
			return err
		}
	}

	if succeeded == 0 {
		result.Status = domain.StageStatusFailed
		result.Reason = string(pipeline.FailureMissingDependency)
		result.Error = firstSceneError(job, sceneVideo)
	} else {
		result.Status = domain.StageStatusSucceeded
		result.Output = fmt.Sprintf("%d/%d scenes", succeeded, len(job.Scenes))
	}
	return nil
}

// settleStory derives the terminal status from per-scene outcomes: complete
// when every requested unit succeeded, failed when nothing did, partial
// otherwise.
func (o *Orchestrator) settleStory(job *domain.PipelineJob) {
	if job.Status == domain.JobStatusFailed {
		return
	}
	total, done := 0, 0
	for i := range job.Scenes {
		scene := &job.Scenes[i]
		total++
		if scene.ImageStatus == domain.StageStatusSucceeded {
			done++
		}
		if job.RenderVideos {
			total++
			if scene.VideoStatus == domain.StageStatusSucceeded {
				done++
			}
		}
	}
	switch {
	case total == 0 || done == 0:
		job.Status = domain.JobStatusFailed
		job.Error = firstSceneError(job, sceneImage)
	case done == total:
		job.Status = domain.JobStatusComplete
	default:
		job.Status = domain.JobStatusPartial
	}
}

type sceneUnit int

const (
	sceneImage sceneUnit = iota
	sceneVideo
)

func firstSceneError(job *domain.PipelineJob, unit sceneUnit) string {
	for i := range job.Scenes {
		scene := &job.Scenes[i]
		if unit == sceneImage && scene.ImageError != "" {
			return scene.ImageError
		}
		if unit == sceneVideo && scene.VideoError != "" {
			return scene.VideoError
		}
	}
	return ""
}
