package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyforge/internal/domain"
)

// UsageRepositoryPG implements domain.UsageRepository backed by PostgreSQL.
// The check-and-increment is a single conditional UPDATE so concurrent
// attempts for the same identity cannot both take the last slot.
type UsageRepositoryPG struct {
	pool       *pgxpool.Pool
	imageLimit int
	videoLimit int
}

// NewUsageRepository creates a new UsageRepositoryPG. The limits seed
// lazily created counters; non-positive values fall back to the domain
// defaults.
func NewUsageRepository(pool *pgxpool.Pool, defaultImageLimit, defaultVideoLimit int) *UsageRepositoryPG {
	if defaultImageLimit <= 0 {
		defaultImageLimit = domain.DefaultImageLimit
	}
	if defaultVideoLimit <= 0 {
		defaultVideoLimit = domain.DefaultVideoLimit
	}
	return &UsageRepositoryPG{pool: pool, imageLimit: defaultImageLimit, videoLimit: defaultVideoLimit}
}

// Counters returns both counters for the identity, lazily creating
// default-limit rows when absent.
func (r *UsageRepositoryPG) Counters(ctx context.Context, identityID string) ([]domain.UsageCounter, error) {
	if err := r.ensureCounters(ctx, identityID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT identity_id, kind, count, "limit", created_at, updated_at
FROM usage_counters
WHERE identity_id = $1
ORDER BY kind;
`, identityID)
	if err != nil {
		return nil, storageErr("select usage counters", err)
	}
	defer rows.Close()

	var counters []domain.UsageCounter
	for rows.Next() {
		var c domain.UsageCounter
		if err := rows.Scan(&c.IdentityID, &c.Kind, &c.Count, &c.Limit, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storageErr("scan usage counter", err)
		}
		counters = append(counters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate usage counters", err)
	}
	return counters, nil
}

// TryIncrement performs the atomic guarded increment. A zero-row update means
// the counter is at its limit and the attempt is denied without mutation.
func (r *UsageRepositoryPG) TryIncrement(ctx context.Context, identityID string, kind domain.ContentKind) (bool, error) {
	if err := r.ensureCounters(ctx, identityID); err != nil {
		return false, err
	}

	row := r.pool.QueryRow(ctx, `
UPDATE usage_counters
SET count = count + 1, updated_at = NOW()
WHERE identity_id = $1 AND kind = $2 AND count < "limit"
RETURNING count;
`, identityID, kind)

	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storageErr("increment usage counter", err)
	}
	return true, nil
}

// SetLimits unconditionally overrides both limits.
func (r *UsageRepositoryPG) SetLimits(ctx context.Context, identityID string, imageLimit, videoLimit int) error {
	if err := r.ensureCounters(ctx, identityID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
UPDATE usage_counters
SET "limit" = CASE kind WHEN 'image' THEN $2::int ELSE $3::int END,
    updated_at = NOW()
WHERE identity_id = $1;
`, identityID, imageLimit, videoLimit)
	if err != nil {
		return storageErr("set usage limits", err)
	}
	return nil
}

// IncreaseLimits raises both limits by the given deltas.
func (r *UsageRepositoryPG) IncreaseLimits(ctx context.Context, identityID string, imageDelta, videoDelta int) error {
	if err := r.ensureCounters(ctx, identityID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
UPDATE usage_counters
SET "limit" = "limit" + CASE kind WHEN 'image' THEN $2::int ELSE $3::int END,
    updated_at = NOW()
WHERE identity_id = $1;
`, identityID, imageDelta, videoDelta)
	if err != nil {
		return storageErr("increase usage limits", err)
	}
	return nil
}

func (r *UsageRepositoryPG) ensureCounters(ctx context.Context, identityID string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO usage_counters (identity_id, kind, count, "limit", created_at, updated_at)
VALUES ($1, 'image', 0, $2, NOW(), NOW()),
       ($1, 'video', 0, $3, NOW(), NOW())
ON CONFLICT (identity_id, kind) DO NOTHING;
`, identityID, r.imageLimit, r.videoLimit)
	if err != nil {
		return storageErr("ensure usage counters", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
}

var _ domain.UsageRepository = (*UsageRepositoryPG)(nil)
