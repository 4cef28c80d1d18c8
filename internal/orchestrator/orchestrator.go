// Package orchestrator sequences pipeline stages into end-to-end story and
// short jobs, enforcing ledger admission immediately before each unit of
// billable work and recording per-stage progress on the job.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storyforge/internal/domain"
	"storyforge/internal/pipeline"
)

// Admitter is the slice of the usage ledger the orchestrator needs.
type Admitter interface {
	RecordJobAttempt(ctx context.Context, identity domain.Identity, jobID string, kind domain.ContentKind) (bool, error)
}

// SceneImager materializes one scene's image. Implemented by
// pipeline.ImageStage.
type SceneImager interface {
	PaintScene(ctx context.Context, job *domain.PipelineJob, scene *domain.StoryScene) error
}

// SceneAnimator materializes one scene's video. Implemented by
// pipeline.VideoStage.
type SceneAnimator interface {
	AnimateScene(ctx context.Context, job *domain.PipelineJob, scene *domain.StoryScene) error
}

// Stages bundles the concrete stages the orchestrator drives.
type Stages struct {
	Script   pipeline.Stage
	Short    []pipeline.Stage
	Imager   SceneImager
	Animator SceneAnimator
}

// Orchestrator owns the jobs it runs; a job is never shared across
// concurrent runs.
type Orchestrator struct {
	ledger Admitter
	jobs   domain.PipelineJobRepository
	stages Stages
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an orchestrator over the given ledger, job store and stages.
func New(ledger Admitter, jobs domain.PipelineJobRepository, stages Stages, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger: ledger,
		jobs:   jobs,
		stages: stages,
		logger: logger,
		now:    time.Now,
	}
}

// NewStoryJob builds a pending story job with its declared stage skeleton.
func NewStoryJob(identity domain.Identity, topic, locale string, sceneCount int, renderVideos bool) *domain.PipelineJob {
	job := &domain.PipelineJob{
		ID:           uuid.NewString(),
		IdentityID:   identity.ID,
		IdentityKind: identity.Kind,
		Kind:         domain.JobKindStory,
		Status:       domain.JobStatusPending,
		Topic:        topic,
		Locale:       locale,
		SceneCount:   sceneCount,
		RenderVideos: renderVideos,
	}
	job.Stages = storyStageSkeleton(renderVideos)
	return job
}

// NewShortJob builds a pending short job with its declared stage skeleton.
func NewShortJob(identity domain.Identity, topic, locale string, sceneCount int) *domain.PipelineJob {
	job := &domain.PipelineJob{
		ID:           uuid.NewString(),
		IdentityID:   identity.ID,
		IdentityKind: identity.Kind,
		Kind:         domain.JobKindShort,
		Status:       domain.JobStatusPending,
		Topic:        topic,
		Locale:       locale,
		SceneCount:   sceneCount,
	}
	job.Stages = shortStageSkeleton()
	return job
}

func storyStageSkeleton(renderVideos bool) []domain.StageResult {
	stages := []domain.StageResult{
		{Name: pipeline.StageScript, Status: domain.StageStatusPending},
		{Name: pipeline.StageSceneImages, Status: domain.StageStatusPending},
	}
	if renderVideos {
		stages = append(stages, domain.StageResult{Name: pipeline.StageSceneVideos, Status: domain.StageStatusPending})
	}
	return stages
}

func shortStageSkeleton() []domain.StageResult {
	return []domain.StageResult{
		{Name: pipeline.StageScript, Status: domain.StageStatusPending},
		{Name: pipeline.StagePromptify, Status: domain.StageStatusPending},
		{Name: pipeline.StageStockImages, Status: domain.StageStatusPending},
		{Name: pipeline.StageAudio, Status: domain.StageStatusPending},
		{Name: pipeline.StageCaptions, Status: domain.StageStatusPending, Optional: true},
		{Name: pipeline.StageCompose, Status: domain.StageStatusPending},
	}
}

// Run executes the job to a terminal state. Stage failures are recorded on
// the job rather than returned; only cancellation and job-store failures
// propagate.
func (o *Orchestrator) Run(ctx context.Context, job *domain.PipelineJob) error {
	job.Status = domain.JobStatusRunning
	if err := o.persist(ctx, job); err != nil {
		return err
	}

	var err error
	switch job.Kind {
	case domain.JobKindStory:
		err = o.runStory(ctx, job)
	case domain.JobKindShort:
		err = o.runShort(ctx, job)
	default:
		job.Status = domain.JobStatusFailed
		job.Error = "unsupported job kind " + string(job.Kind)
		return o.persist(ctx, job)
	}
	if err != nil {
		return err
	}
	return o.persist(ctx, job)
}

// runStage drives one generic stage: admission when billable, execution,
// result recording. The returned error is the stage failure (already
// recorded on the job), nil on success.
func (o *Orchestrator) runStage(ctx context.Context, job *domain.PipelineJob, stage pipeline.Stage) error {
	result := job.Stage(stage.Name())
	if result == nil {
		job.Stages = append(job.Stages, domain.StageResult{Name: stage.Name(), Optional: stage.Optional()})
		result = &job.Stages[len(job.Stages)-1]
	}
	attemptedAt := o.now()
	result.Status = domain.StageStatusRunning
	result.AttemptedAt = &attemptedAt
	if err := o.persist(ctx, job); err != nil {
		return err
	}

	if kind, billable := stage.Bill(); billable {
		admitted, err := o.ledger.RecordJobAttempt(ctx, job.Identity(), job.ID, kind)
		if err != nil {
			o.failStage(result, pipeline.WithStage(stage.Name(), err))
			return pipeline.WithStage(stage.Name(), err)
		}
		if !admitted {
			denial := pipeline.WithStage(stage.Name(), pipeline.LimitDenied(kind))
			o.failStage(result, denial)
			return denial
		}
	}

	output, err := stage.Execute(ctx, job)
	if err != nil {
		o.failStage(result, err)
		return err
	}
	result.Status = domain.StageStatusSucceeded
	result.Output = output
	return nil
}

func (o *Orchestrator) failStage(result *domain.StageResult, err error) {
	result.Status = domain.StageStatusFailed
	result.Reason = string(pipeline.KindOf(err))
	result.Error = pipeline.Reason(err)
}

func (o *Orchestrator) persist(ctx context.Context, job *domain.PipelineJob) error {
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error().Err(err).Str("job_id", job.ID).Msg("orchestrator: persist job state failed")
		return err
	}
	return nil
}

// storageFailure reports whether the error means the durable ledger could
// not be reached, which fails the whole job closed.
func storageFailure(err error) bool {
	return pipeline.KindOf(err) == pipeline.FailureStorageUnavailable || errors.Is(err, domain.ErrStorageUnavailable)
}
