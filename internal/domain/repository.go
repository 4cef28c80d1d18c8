package domain

import "context"

// UsageRepository defines durable access to per-identity usage counters.
// Implementations must make TryIncrement a single atomic check-and-increment
// with respect to concurrent attempts for the same identity.
type UsageRepository interface {
	// Counters returns both counters for the identity, lazily creating
	// default-limit records when absent.
	Counters(ctx context.Context, identityID string) ([]UsageCounter, error)
	// TryIncrement atomically increments the counter when count < limit and
	// reports whether the increment was applied.
	TryIncrement(ctx context.Context, identityID string, kind ContentKind) (bool, error)
	// SetLimits unconditionally overrides both limits.
	SetLimits(ctx context.Context, identityID string, imageLimit, videoLimit int) error
	// IncreaseLimits raises both limits by the given deltas.
	IncreaseLimits(ctx context.Context, identityID string, imageDelta, videoDelta int) error
}

// PipelineJobRepository defines persistence for pipeline jobs.
type PipelineJobRepository interface {
	Create(ctx context.Context, job *PipelineJob) error
	Update(ctx context.Context, job *PipelineJob) error
	GetByID(ctx context.Context, jobID string) (*PipelineJob, error)
}

// ArtifactRepository handles persistence for generated artifact metadata.
type ArtifactRepository interface {
	Save(ctx context.Context, artifact *Artifact) error
	ListPublic(ctx context.Context, limit, offset int) ([]Artifact, error)
	ListByIdentity(ctx context.Context, identityID string, limit, offset int) ([]Artifact, error)
	ListByJob(ctx context.Context, jobID string) ([]Artifact, error)
}
