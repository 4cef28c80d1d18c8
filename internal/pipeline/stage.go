package pipeline

import (
	"context"

	"storyforge/internal/domain"
)

// Stage is one vendor-call wrapper in a pipeline. Stages mutate the job in
// place (filling scenes, recording artifact references) and report failures
// through the taxonomy in this package.
type Stage interface {
	Name() string
	// Optional stages record their failure but do not abort the job.
	Optional() bool
	// Bill reports the content kind this stage consumes one admission for,
	// if any. Free stages return ok=false.
	Bill() (domain.ContentKind, bool)
	// Execute runs the stage against the job and returns an opaque artifact
	// reference for the stage result.
	Execute(ctx context.Context, job *domain.PipelineJob) (string, error)
}

// ArtifactSink persists generated artifact metadata. Satisfied by
// domain.ArtifactRepository.
type ArtifactSink interface {
	Save(ctx context.Context, artifact *domain.Artifact) error
}

// BlobStore persists raw artifact bytes and returns the stored key.
// Satisfied by storage.FileStore.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}
