package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyforge/internal/domain"
)

// ArtifactRepositoryPG implements domain.ArtifactRepository.
type ArtifactRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewArtifactRepository creates a new artifact repository backed by PostgreSQL.
func NewArtifactRepository(pool *pgxpool.Pool) *ArtifactRepositoryPG {
	return &ArtifactRepositoryPG{pool: pool}
}

// Save inserts one artifact metadata record.
func (r *ArtifactRepositoryPG) Save(ctx context.Context, artifact *domain.Artifact) error {
	metadata, err := json.Marshal(artifact.Metadata)
	if err != nil {
		return fmt.Errorf("encode artifact metadata: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO artifacts (id, job_id, identity_id, content_type, content_url, prompt, is_public, metadata)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8);
`,
		artifact.ID,
		artifact.JobID,
		artifact.IdentityID,
		artifact.ContentType,
		artifact.ContentURL,
		artifact.Prompt,
		artifact.IsPublic,
		metadata,
	)
	if err != nil {
		return storageErr("insert artifact", err)
	}
	return nil
}

// ListPublic returns the most recent publicly visible artifacts.
func (r *ArtifactRepositoryPG) ListPublic(ctx context.Context, limit, offset int) ([]domain.Artifact, error) {
	return r.list(ctx, `
SELECT id, COALESCE(job_id::text, ''), identity_id, content_type, content_url, prompt, is_public, metadata, created_at
FROM artifacts
WHERE is_public
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;
`, limit, offset)
}

// ListByIdentity returns the identity's own artifacts, newest first.
func (r *ArtifactRepositoryPG) ListByIdentity(ctx context.Context, identityID string, limit, offset int) ([]domain.Artifact, error) {
	return r.list(ctx, `
SELECT id, COALESCE(job_id::text, ''), identity_id, content_type, content_url, prompt, is_public, metadata, created_at
FROM artifacts
WHERE identity_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;
`, identityID, limit, offset)
}

// ListByJob returns every artifact produced by one pipeline job.
func (r *ArtifactRepositoryPG) ListByJob(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	return r.list(ctx, `
SELECT id, COALESCE(job_id::text, ''), identity_id, content_type, content_url, prompt, is_public, metadata, created_at
FROM artifacts
WHERE job_id = $1::uuid
ORDER BY created_at ASC;
`, jobID)
}

func (r *ArtifactRepositoryPG) list(ctx context.Context, query string, args ...any) ([]domain.Artifact, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("select artifacts", err)
	}
	defer rows.Close()

	var items []domain.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate artifacts", err)
	}
	return items, nil
}

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	var a domain.Artifact
	var metadata []byte
	if err := row.Scan(&a.ID, &a.JobID, &a.IdentityID, &a.ContentType, &a.ContentURL, &a.Prompt, &a.IsPublic, &metadata, &a.CreatedAt); err != nil {
		return nil, storageErr("scan artifact", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode artifact metadata: %w", err)
		}
	}
	return &a, nil
}

var _ domain.ArtifactRepository = (*ArtifactRepositoryPG)(nil)
