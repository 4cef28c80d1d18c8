package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyforge/internal/domain"
)

// PipelineJobRepositoryPG implements domain.PipelineJobRepository. Stage
// results and scenes are stored as jsonb alongside the job row.
type PipelineJobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPipelineJobRepository creates a new job repository backed by PostgreSQL.
func NewPipelineJobRepository(pool *pgxpool.Pool) *PipelineJobRepositoryPG {
	return &PipelineJobRepositoryPG{pool: pool}
}

// Create inserts a new pipeline job record.
func (r *PipelineJobRepositoryPG) Create(ctx context.Context, job *domain.PipelineJob) error {
	stages, scenes, err := marshalJobState(job)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO pipeline_jobs (id, identity_id, identity_kind, kind, status, topic, locale, scene_count, render_videos, stages, scenes, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`,
		job.ID,
		job.IdentityID,
		job.IdentityKind,
		job.Kind,
		job.Status,
		job.Topic,
		job.Locale,
		job.SceneCount,
		job.RenderVideos,
		stages,
		scenes,
		job.Error,
	)
	if err != nil {
		return storageErr("insert pipeline job", err)
	}
	return nil
}

// Update persists the job's current status, stage results and scenes.
func (r *PipelineJobRepositoryPG) Update(ctx context.Context, job *domain.PipelineJob) error {
	stages, scenes, err := marshalJobState(job)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
UPDATE pipeline_jobs
SET status = $2,
    stages = $3,
    scenes = $4,
    error_message = $5,
    updated_at = NOW()
WHERE id = $1;
`, job.ID, job.Status, stages, scenes, job.Error)
	if err != nil {
		return storageErr("update pipeline job", err)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *PipelineJobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.PipelineJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, identity_id, identity_kind, kind, status, topic, locale, scene_count, render_videos, stages, scenes, error_message, created_at, updated_at
FROM pipeline_jobs
WHERE id = $1;
`, jobID)

	var job domain.PipelineJob
	var stages, scenes []byte
	if err := row.Scan(
		&job.ID,
		&job.IdentityID,
		&job.IdentityKind,
		&job.Kind,
		&job.Status,
		&job.Topic,
		&job.Locale,
		&job.SceneCount,
		&job.RenderVideos,
		&stages,
		&scenes,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr("select pipeline job", err)
	}
	if len(stages) > 0 {
		if err := json.Unmarshal(stages, &job.Stages); err != nil {
			return nil, fmt.Errorf("decode job stages: %w", err)
		}
	}
	if len(scenes) > 0 {
		if err := json.Unmarshal(scenes, &job.Scenes); err != nil {
			return nil, fmt.Errorf("decode job scenes: %w", err)
		}
	}
	return &job, nil
}

func marshalJobState(job *domain.PipelineJob) ([]byte, []byte, error) {
	stages, err := json.Marshal(job.Stages)
	if err != nil {
		return nil, nil, fmt.Errorf("encode job stages: %w", err)
	}
	scenes, err := json.Marshal(job.Scenes)
	if err != nil {
		return nil, nil, fmt.Errorf("encode job scenes: %w", err)
	}
	return stages, scenes, nil
}

var _ domain.PipelineJobRepository = (*PipelineJobRepositoryPG)(nil)
