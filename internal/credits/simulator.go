package credits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storyforge/internal/domain"
)

// LimitRaiser is the slice of the usage ledger a purchase needs.
type LimitRaiser interface {
	IncreaseLimits(ctx context.Context, identity domain.Identity, imageDelta, videoDelta int) error
	RemainingCounts(ctx context.Context, identity domain.Identity) (domain.RemainingCounts, error)
}

// Receipt records one settled purchase.
type Receipt struct {
	ID        string                 `json:"id"`
	PackageID string                 `json:"package_id"`
	Remaining domain.RemainingCounts `json:"remaining"`
	SettledAt time.Time              `json:"settled_at"`
}

// Purchaser settles credit purchases.
type Purchaser interface {
	Purchase(ctx context.Context, identity domain.Identity, packageID string) (*Receipt, error)
}

// Simulator settles purchases without a payment gateway: wait out a fixed
// processing delay, then raise the identity's limits by the package
// amounts.
type Simulator struct {
	ledger LimitRaiser
	delay  time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

var _ Purchaser = (*Simulator)(nil)

// NewSimulator creates a purchase simulator with the given settlement
// delay.
func NewSimulator(ledger LimitRaiser, delay time.Duration, logger zerolog.Logger) *Simulator {
	if delay < 0 {
		delay = 0
	}
	return &Simulator{ledger: ledger, delay: delay, logger: logger, now: time.Now}
}

// Purchase validates the selection, simulates payment processing and
// applies the package as a limit increase. Cancellation during the delay
// leaves the ledger untouched.
func (s *Simulator) Purchase(ctx context.Context, identity domain.Identity, packageID string) (*Receipt, error) {
	if !identity.Valid() {
		return nil, domain.ErrInvalidInput
	}
	pkg, err := FindPackage(packageID)
	if err != nil {
		return nil, err
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	// A zero delay skips the select; the caller may already be gone.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.ledger.IncreaseLimits(ctx, identity, pkg.Images, pkg.Videos); err != nil {
		return nil, err
	}
	remaining, err := s.ledger.RemainingCounts(ctx, identity)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ID:        uuid.NewString(),
		PackageID: pkg.ID,
		Remaining: remaining,
		SettledAt: s.now(),
	}
	s.logger.Info().
		Str("identity_id", identity.ID).
		Str("package_id", pkg.ID).
		Int("images", pkg.Images).
		Int("videos", pkg.Videos).
		Msg("credits: purchase settled")
	return receipt, nil
}
