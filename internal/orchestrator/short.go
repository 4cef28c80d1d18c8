package orchestrator

import (
	"context"

	"storyforge/internal/domain"
	"storyforge/internal/pipeline"
)

// runShort executes the short flow as a strict stage sequence. A required
// stage failure terminates the job and leaves the remaining stages pending;
// optional stage failures are recorded and skipped over.
func (o *Orchestrator) runShort(ctx context.Context, job *domain.PipelineJob) error {
	for _, stage := range o.stages.Short {
		if err := o.runStage(ctx, job, stage); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if stage.Optional() {
				o.logger.Warn().Err(err).Str("job_id", job.ID).Str("stage", stage.Name()).Msg("optional stage failed, continuing")
				continue
			}
			job.Status = domain.JobStatusFailed
			job.Error = pipeline.Reason(err)
			return nil
		}
	}
	job.Status = domain.JobStatusComplete
	return nil
}
