package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/domain"
)

func newTestLedger(t *testing.T) (*Ledger, *repo.MemoryUsageRepository) {
	t.Helper()
	usage := repo.NewMemoryUsageRepository()
	return New(usage, zerolog.Nop()), usage
}

func TestRecordAttemptAdmitsUpToLimit(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	identity := domain.AnonymousIdentity("session-1")

	if err := ledger.SetLimits(ctx, identity, 3, 1); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}

	for i := 0; i < 3; i++ {
		admitted, err := ledger.RecordAttempt(ctx, identity, domain.ContentKindImage)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !admitted {
			t.Fatalf("attempt %d denied below limit", i)
		}
	}

	admitted, err := ledger.RecordAttempt(ctx, identity, domain.ContentKindImage)
	if err != nil {
		t.Fatalf("attempt over limit: %v", err)
	}
	if admitted {
		t.Fatal("attempt admitted past limit")
	}

	remaining, err := ledger.RemainingCounts(ctx, identity)
	if err != nil {
		t.Fatalf("RemainingCounts: %v", err)
	}
	if remaining.Images != 0 {
		t.Fatalf("remaining images = %d, want 0", remaining.Images)
	}
	if remaining.Videos != 1 {
		t.Fatalf("remaining videos = %d, want 1", remaining.Videos)
	}
}

func TestRecordAttemptConcurrentNeverOverAdmits(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	identity := domain.AnonymousIdentity("session-concurrent")

	const limit = 10
	const attempts = 50
	if err := ledger.SetLimits(ctx, identity, limit, 1); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted, err := ledger.RecordAttempt(ctx, identity, domain.ContentKindImage)
			if err != nil {
				t.Errorf("RecordAttempt: %v", err)
				return
			}
			results <- admitted
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	if admitted != limit {
		t.Fatalf("admitted %d attempts, want exactly %d", admitted, limit)
	}
}

func TestRemainingCountsClampsAtZero(t *testing.T) {
	ctx := context.Background()
	ledger, usage := newTestLedger(t)
	identity := domain.AnonymousIdentity("session-clamp")

	if err := ledger.SetLimits(ctx, identity, 5, 2); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	usage.SetCount(identity.Key(), domain.ContentKindImage, 9)

	remaining, err := ledger.RemainingCounts(ctx, identity)
	if err != nil {
		t.Fatalf("RemainingCounts: %v", err)
	}
	if remaining.Images != 0 {
		t.Fatalf("remaining images = %d, want 0", remaining.Images)
	}
}

func TestRemainingCountsDefaultLimits(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	identity := domain.AnonymousIdentity("fresh-session")

	remaining, err := ledger.RemainingCounts(ctx, identity)
	if err != nil {
		t.Fatalf("RemainingCounts: %v", err)
	}
	if remaining.Images != domain.DefaultImageLimit {
		t.Fatalf("remaining images = %d, want %d", remaining.Images, domain.DefaultImageLimit)
	}
	if remaining.Videos != domain.DefaultVideoLimit {
		t.Fatalf("remaining videos = %d, want %d", remaining.Videos, domain.DefaultVideoLimit)
	}
}

func TestSetLimitsOverrides(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	identity := domain.UserIdentity("user-7")

	if err := ledger.SetLimits(ctx, identity, 50, 10); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	remaining, err := ledger.RemainingCounts(ctx, identity)
	if err != nil {
		t.Fatalf("RemainingCounts: %v", err)
	}
	if remaining.Images != 50 || remaining.Videos != 10 {
		t.Fatalf("remaining = %+v, want 50/10", remaining)
	}
}

func TestSetLimitsRejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	identity := domain.UserIdentity("user-8")

	if err := ledger.SetLimits(ctx, identity, 0, 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestIncreaseLimitsRaisesRemaining(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	identity := domain.UserIdentity("user-9")

	if err := ledger.SetLimits(ctx, identity, 5, 1); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := ledger.RecordAttempt(ctx, identity, domain.ContentKindImage); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := ledger.IncreaseLimits(ctx, identity, 25, 5); err != nil {
		t.Fatalf("IncreaseLimits: %v", err)
	}

	remaining, err := ledger.RemainingCounts(ctx, identity)
	if err != nil {
		t.Fatalf("RemainingCounts: %v", err)
	}
	if remaining.Images != 25 {
		t.Fatalf("remaining images = %d, want 25", remaining.Images)
	}
	if remaining.Videos != 6 {
		t.Fatalf("remaining videos = %d, want 6", remaining.Videos)
	}
}

func TestRecordAttemptKeepsAnonymousAndUserApart(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)
	user := domain.UserIdentity("dup-id")
	session := domain.AnonymousIdentity("dup-id")

	if err := ledger.SetLimits(ctx, user, 2, 1); err != nil {
		t.Fatalf("SetLimits: %v", err)
	}

	// A session that picked the user's id meters against its own counter.
	for i := 0; i < 2; i++ {
		admitted, err := ledger.RecordAttempt(ctx, session, domain.ContentKindImage)
		if err != nil {
			t.Fatalf("session attempt %d: %v", i, err)
		}
		if !admitted {
			t.Fatalf("session attempt %d denied", i)
		}
	}

	for i := 0; i < 2; i++ {
		admitted, err := ledger.RecordAttempt(ctx, user, domain.ContentKindImage)
		if err != nil {
			t.Fatalf("user attempt %d: %v", i, err)
		}
		if !admitted {
			t.Fatalf("user attempt %d denied, session drained the user's counter", i)
		}
	}
	admitted, err := ledger.RecordAttempt(ctx, user, domain.ContentKindImage)
	if err != nil {
		t.Fatalf("user attempt over limit: %v", err)
	}
	if admitted {
		t.Fatal("user attempt admitted past limit")
	}

	remaining, err := ledger.RemainingCounts(ctx, session)
	if err != nil {
		t.Fatalf("RemainingCounts: %v", err)
	}
	if remaining.Images != domain.DefaultImageLimit-2 {
		t.Fatalf("session remaining images = %d, want %d", remaining.Images, domain.DefaultImageLimit-2)
	}
}

func TestRecordAttemptRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	if _, err := ledger.RecordAttempt(ctx, domain.Identity{}, domain.ContentKindImage); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty identity err = %v, want ErrInvalidInput", err)
	}
	identity := domain.UserIdentity("user-10")
	if _, err := ledger.RecordAttempt(ctx, identity, domain.ContentKind("audio")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("unknown kind err = %v, want ErrInvalidInput", err)
	}
}

type failingUsageRepository struct {
	err error
}

func (f *failingUsageRepository) Counters(ctx context.Context, identityID string) ([]domain.UsageCounter, error) {
	return nil, f.err
}

func (f *failingUsageRepository) TryIncrement(ctx context.Context, identityID string, kind domain.ContentKind) (bool, error) {
	return false, f.err
}

func (f *failingUsageRepository) SetLimits(ctx context.Context, identityID string, imageLimit, videoLimit int) error {
	return f.err
}

func (f *failingUsageRepository) IncreaseLimits(ctx context.Context, identityID string, imageDelta, videoDelta int) error {
	return f.err
}

func TestRecordAttemptFailsClosedOnStorageError(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("connection refused")
	ledger := New(&failingUsageRepository{err: storeErr}, zerolog.Nop())
	identity := domain.UserIdentity("user-11")

	admitted, err := ledger.RecordAttempt(ctx, identity, domain.ContentKindVideo)
	if err == nil {
		t.Fatal("expected storage error")
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped %v", err, storeErr)
	}
	if admitted {
		t.Fatal("attempt admitted despite storage failure")
	}
}
