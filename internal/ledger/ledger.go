// Package ledger gates every billable generation attempt against the
// identity's durable usage counters. The durable store is the only authority
// for admission decisions; the optional cache is an advisory read replica
// refreshed after each decision.
package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"storyforge/internal/domain"
)

// EventSink records admission decisions for auditing. Implementations must
// tolerate being called on the hot path; failures are logged, not propagated.
type EventSink interface {
	RecordUsageEvent(ctx context.Context, identity domain.Identity, jobID string, kind domain.ContentKind, admitted bool) error
}

// Ledger owns admission decisions and durable usage accounting.
type Ledger struct {
	repo   domain.UsageRepository
	cache  *Cache
	events EventSink
	logger zerolog.Logger
}

// Option configures optional ledger collaborators.
type Option func(*Ledger)

// WithCache attaches an advisory remaining-counts cache.
func WithCache(cache *Cache) Option {
	return func(l *Ledger) { l.cache = cache }
}

// WithEventSink attaches an audit sink for admission decisions.
func WithEventSink(sink EventSink) Option {
	return func(l *Ledger) { l.events = sink }
}

// New creates a Ledger over the given durable repository.
func New(repo domain.UsageRepository, logger zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{repo: repo, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RemainingCounts reads the durable counters for the identity, lazily
// creating default-limit records, and returns limit-count clamped at zero.
func (l *Ledger) RemainingCounts(ctx context.Context, identity domain.Identity) (domain.RemainingCounts, error) {
	if !identity.Valid() {
		return domain.RemainingCounts{}, domain.ErrInvalidInput
	}
	counters, err := l.repo.Counters(ctx, identity.Key())
	if err != nil {
		return domain.RemainingCounts{}, fmt.Errorf("read usage counters: %w", err)
	}
	remaining := remainingFromCounters(counters)
	l.refreshCache(ctx, identity, remaining)
	return remaining, nil
}

// RecordAttempt atomically admits or denies one billable generation attempt.
// The durable store performs the check-and-increment as a single operation;
// storage failures deny the attempt (fail closed).
func (l *Ledger) RecordAttempt(ctx context.Context, identity domain.Identity, kind domain.ContentKind) (bool, error) {
	return l.recordAttempt(ctx, identity, "", kind)
}

// RecordJobAttempt is RecordAttempt with the owning job recorded on the
// audit event.
func (l *Ledger) RecordJobAttempt(ctx context.Context, identity domain.Identity, jobID string, kind domain.ContentKind) (bool, error) {
	return l.recordAttempt(ctx, identity, jobID, kind)
}

func (l *Ledger) recordAttempt(ctx context.Context, identity domain.Identity, jobID string, kind domain.ContentKind) (bool, error) {
	if !identity.Valid() {
		return false, domain.ErrInvalidInput
	}
	if kind != domain.ContentKindImage && kind != domain.ContentKindVideo {
		return false, fmt.Errorf("%w: unknown content kind %q", domain.ErrInvalidInput, kind)
	}

	admitted, err := l.repo.TryIncrement(ctx, identity.Key(), kind)
	if err != nil {
		l.logger.Error().Err(err).
			Str("identity_id", identity.ID).
			Str("kind", string(kind)).
			Msg("ledger: admission check failed, denying")
		return false, fmt.Errorf("record attempt: %w", err)
	}

	l.recordEvent(ctx, identity, jobID, kind, admitted)
	l.refreshCacheFromStore(ctx, identity)

	if !admitted {
		l.logger.Info().
			Str("identity_id", identity.ID).
			Str("kind", string(kind)).
			Msg("ledger: attempt denied, limit reached")
	}
	return admitted, nil
}

// SetLimits unconditionally overrides both limits. Authorization is the
// caller's concern.
func (l *Ledger) SetLimits(ctx context.Context, identity domain.Identity, imageLimit, videoLimit int) error {
	if !identity.Valid() {
		return domain.ErrInvalidInput
	}
	if imageLimit <= 0 || videoLimit <= 0 {
		return fmt.Errorf("%w: limits must be positive", domain.ErrInvalidInput)
	}
	if err := l.repo.SetLimits(ctx, identity.Key(), imageLimit, videoLimit); err != nil {
		return fmt.Errorf("set limits: %w", err)
	}
	l.refreshCacheFromStore(ctx, identity)
	return nil
}

// IncreaseLimits raises the identity's effective limits, e.g. after a
// credit purchase.
func (l *Ledger) IncreaseLimits(ctx context.Context, identity domain.Identity, imageDelta, videoDelta int) error {
	if !identity.Valid() {
		return domain.ErrInvalidInput
	}
	if imageDelta < 0 || videoDelta < 0 {
		return fmt.Errorf("%w: deltas must not be negative", domain.ErrInvalidInput)
	}
	if err := l.repo.IncreaseLimits(ctx, identity.Key(), imageDelta, videoDelta); err != nil {
		return fmt.Errorf("increase limits: %w", err)
	}
	l.refreshCacheFromStore(ctx, identity)
	return nil
}

// CachedRemainingCounts returns the advisory cached view, if any. Display
// only; never used for admission.
func (l *Ledger) CachedRemainingCounts(ctx context.Context, identity domain.Identity) (domain.RemainingCounts, bool) {
	if l.cache == nil {
		return domain.RemainingCounts{}, false
	}
	remaining, ok, err := l.cache.Get(ctx, identity.Key())
	if err != nil {
		l.logger.Debug().Err(err).Str("identity_id", identity.ID).Msg("ledger: cache read failed")
		return domain.RemainingCounts{}, false
	}
	return remaining, ok
}

func (l *Ledger) recordEvent(ctx context.Context, identity domain.Identity, jobID string, kind domain.ContentKind, admitted bool) {
	if l.events == nil {
		return
	}
	if err := l.events.RecordUsageEvent(ctx, identity, jobID, kind, admitted); err != nil {
		l.logger.Warn().Err(err).Str("identity_id", identity.ID).Msg("ledger: usage event write failed")
	}
}

func (l *Ledger) refreshCacheFromStore(ctx context.Context, identity domain.Identity) {
	if l.cache == nil {
		return
	}
	counters, err := l.repo.Counters(ctx, identity.Key())
	if err != nil {
		l.logger.Debug().Err(err).Str("identity_id", identity.ID).Msg("ledger: cache refresh read failed")
		return
	}
	l.refreshCache(ctx, identity, remainingFromCounters(counters))
}

func (l *Ledger) refreshCache(ctx context.Context, identity domain.Identity, remaining domain.RemainingCounts) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, identity.Key(), remaining); err != nil {
		l.logger.Debug().Err(err).Str("identity_id", identity.ID).Msg("ledger: cache refresh failed")
	}
}

func remainingFromCounters(counters []domain.UsageCounter) domain.RemainingCounts {
	var remaining domain.RemainingCounts
	for _, counter := range counters {
		switch counter.Kind {
		case domain.ContentKindImage:
			remaining.Images = counter.Remaining()
		case domain.ContentKindVideo:
			remaining.Videos = counter.Remaining()
		}
	}
	return remaining
}
