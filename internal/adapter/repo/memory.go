package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"storyforge/internal/domain"
)

// MemoryUsageRepository is a mutex-guarded in-memory domain.UsageRepository.
// It backs local development without Postgres and the package tests; the
// admission guarantee holds because check and increment share one lock.
type MemoryUsageRepository struct {
	mu         sync.Mutex
	imageLimit int
	videoLimit int
	counters   map[string]map[domain.ContentKind]*domain.UsageCounter
}

// NewMemoryUsageRepository creates an empty in-memory usage repository
// with the domain default limits.
func NewMemoryUsageRepository() *MemoryUsageRepository {
	return NewMemoryUsageRepositoryWithDefaults(domain.DefaultImageLimit, domain.DefaultVideoLimit)
}

// NewMemoryUsageRepositoryWithDefaults creates an in-memory usage
// repository seeding lazily created counters with the given limits.
func NewMemoryUsageRepositoryWithDefaults(imageLimit, videoLimit int) *MemoryUsageRepository {
	if imageLimit <= 0 {
		imageLimit = domain.DefaultImageLimit
	}
	if videoLimit <= 0 {
		videoLimit = domain.DefaultVideoLimit
	}
	return &MemoryUsageRepository{
		imageLimit: imageLimit,
		videoLimit: videoLimit,
		counters:   make(map[string]map[domain.ContentKind]*domain.UsageCounter),
	}
}

func (m *MemoryUsageRepository) Counters(ctx context.Context, identityID string) ([]domain.UsageCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKind := m.ensureLocked(identityID)
	kinds := make([]domain.ContentKind, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	counters := make([]domain.UsageCounter, 0, len(kinds))
	for _, kind := range kinds {
		counters = append(counters, *byKind[kind])
	}
	return counters, nil
}

func (m *MemoryUsageRepository) TryIncrement(ctx context.Context, identityID string, kind domain.ContentKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.ensureLocked(identityID)[kind]
	if !ok {
		return false, nil
	}
	if counter.Count >= counter.Limit {
		return false, nil
	}
	counter.Count++
	counter.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryUsageRepository) SetLimits(ctx context.Context, identityID string, imageLimit, videoLimit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKind := m.ensureLocked(identityID)
	byKind[domain.ContentKindImage].Limit = imageLimit
	byKind[domain.ContentKindVideo].Limit = videoLimit
	return nil
}

func (m *MemoryUsageRepository) IncreaseLimits(ctx context.Context, identityID string, imageDelta, videoDelta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKind := m.ensureLocked(identityID)
	byKind[domain.ContentKindImage].Limit += imageDelta
	byKind[domain.ContentKindVideo].Limit += videoDelta
	return nil
}

// SetCount force-sets a counter value. Intended for tests and tooling.
func (m *MemoryUsageRepository) SetCount(identityID string, kind domain.ContentKind, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.ensureLocked(identityID)[kind]; ok {
		counter.Count = count
	}
}

func (m *MemoryUsageRepository) ensureLocked(identityID string) map[domain.ContentKind]*domain.UsageCounter {
	byKind, ok := m.counters[identityID]
	if !ok {
		now := time.Now()
		byKind = map[domain.ContentKind]*domain.UsageCounter{
			domain.ContentKindImage: {IdentityID: identityID, Kind: domain.ContentKindImage, Limit: m.imageLimit, CreatedAt: now, UpdatedAt: now},
			domain.ContentKindVideo: {IdentityID: identityID, Kind: domain.ContentKindVideo, Limit: m.videoLimit, CreatedAt: now, UpdatedAt: now},
		}
		m.counters[identityID] = byKind
	}
	return byKind
}

// MemoryPipelineJobRepository is an in-memory domain.PipelineJobRepository.
type MemoryPipelineJobRepository struct {
	mu   sync.Mutex
	jobs map[string]domain.PipelineJob
}

// NewMemoryPipelineJobRepository creates an empty in-memory job repository.
func NewMemoryPipelineJobRepository() *MemoryPipelineJobRepository {
	return &MemoryPipelineJobRepository{jobs: make(map[string]domain.PipelineJob)}
}

func (m *MemoryPipelineJobRepository) Create(ctx context.Context, job *domain.PipelineJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneJob(job)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.jobs[job.ID] = stored
	return nil
}

func (m *MemoryPipelineJobRepository) Update(ctx context.Context, job *domain.PipelineJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	stored := cloneJob(job)
	stored.UpdatedAt = time.Now()
	m.jobs[job.ID] = stored
	return nil
}

func (m *MemoryPipelineJobRepository) GetByID(ctx context.Context, jobID string) (*domain.PipelineJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	result := cloneJob(&stored)
	return &result, nil
}

func cloneJob(job *domain.PipelineJob) domain.PipelineJob {
	clone := *job
	clone.Stages = append([]domain.StageResult(nil), job.Stages...)
	clone.Scenes = append([]domain.StoryScene(nil), job.Scenes...)
	return clone
}

// MemoryArtifactRepository is an in-memory domain.ArtifactRepository.
type MemoryArtifactRepository struct {
	mu    sync.Mutex
	items []domain.Artifact
}

// NewMemoryArtifactRepository creates an empty in-memory artifact repository.
func NewMemoryArtifactRepository() *MemoryArtifactRepository {
	return &MemoryArtifactRepository{}
}

func (m *MemoryArtifactRepository) Save(ctx context.Context, artifact *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *artifact
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.items = append(m.items, stored)
	return nil
}

func (m *MemoryArtifactRepository) ListPublic(ctx context.Context, limit, offset int) ([]domain.Artifact, error) {
	return m.filter(limit, offset, func(a domain.Artifact) bool { return a.IsPublic })
}

func (m *MemoryArtifactRepository) ListByIdentity(ctx context.Context, identityID string, limit, offset int) ([]domain.Artifact, error) {
	return m.filter(limit, offset, func(a domain.Artifact) bool { return a.IdentityID == identityID })
}

func (m *MemoryArtifactRepository) ListByJob(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	return m.filter(0, 0, func(a domain.Artifact) bool { return a.JobID == jobID })
}

func (m *MemoryArtifactRepository) filter(limit, offset int, keep func(domain.Artifact) bool) ([]domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.Artifact
	for _, item := range m.items {
		if keep(item) {
			matched = append(matched, item)
		}
	}
	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

var (
	_ domain.UsageRepository       = (*MemoryUsageRepository)(nil)
	_ domain.PipelineJobRepository = (*MemoryPipelineJobRepository)(nil)
	_ domain.ArtifactRepository    = (*MemoryArtifactRepository)(nil)
)
