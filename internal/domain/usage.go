package domain

import "time"

// ContentKind enumerates billable generation categories.
type ContentKind string

const (
	ContentKindImage ContentKind = "image"
	ContentKindVideo ContentKind = "video"
)

// Default per-identity limits applied when a counter is lazily created.
const (
	DefaultImageLimit = 100
	DefaultVideoLimit = 20
)

// UsageCounter is the durable per-identity, per-kind count/limit pair.
// Counts only move through the ledger's admission path; limits move through
// administrative overrides and purchases.
type UsageCounter struct {
	IdentityID string
	Kind       ContentKind
	Count      int
	Limit      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Remaining returns limit - count clamped at zero.
func (c UsageCounter) Remaining() int {
	remaining := c.Limit - c.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingCounts is the UI-facing view of what an identity may still generate.
type RemainingCounts struct {
	Images int `json:"remaining_images"`
	Videos int `json:"remaining_videos"`
}
