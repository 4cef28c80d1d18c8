package repo

import (
	"context"
	"testing"

	"storyforge/internal/domain"
)

func TestMemoryUsageRepositorySeedsConfiguredDefaults(t *testing.T) {
	ctx := context.Background()
	usage := NewMemoryUsageRepositoryWithDefaults(7, 3)

	counters, err := usage.Counters(ctx, "anonymous:fresh")
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("counters = %d, want 2", len(counters))
	}
	for _, c := range counters {
		switch c.Kind {
		case domain.ContentKindImage:
			if c.Limit != 7 {
				t.Fatalf("image limit = %d, want 7", c.Limit)
			}
		case domain.ContentKindVideo:
			if c.Limit != 3 {
				t.Fatalf("video limit = %d, want 3", c.Limit)
			}
		}
	}
}

func TestMemoryUsageRepositoryRejectsNonPositiveDefaults(t *testing.T) {
	ctx := context.Background()
	usage := NewMemoryUsageRepositoryWithDefaults(0, -1)

	counters, err := usage.Counters(ctx, "anonymous:fresh")
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	for _, c := range counters {
		switch c.Kind {
		case domain.ContentKindImage:
			if c.Limit != domain.DefaultImageLimit {
				t.Fatalf("image limit = %d, want %d", c.Limit, domain.DefaultImageLimit)
			}
		case domain.ContentKindVideo:
			if c.Limit != domain.DefaultVideoLimit {
				t.Fatalf("video limit = %d, want %d", c.Limit, domain.DefaultVideoLimit)
			}
		}
	}
}
