package ledger

import (
	"context"
	"encoding/json"

	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/sqlinline"
)

// SQLEventSink writes admission decisions to the usage_events audit table.
type SQLEventSink struct {
	sql infra.SQLExecutor
}

// NewSQLEventSink creates an audit sink over the given SQL executor.
func NewSQLEventSink(sql infra.SQLExecutor) *SQLEventSink {
	return &SQLEventSink{sql: sql}
}

// RecordUsageEvent inserts one audit row per admission decision.
func (s *SQLEventSink) RecordUsageEvent(ctx context.Context, identity domain.Identity, jobID string, kind domain.ContentKind, admitted bool) error {
	properties, _ := json.Marshal(map[string]any{
		"identity_kind": identity.Kind,
	})
	_, err := s.sql.Exec(ctx, sqlinline.QInsertUsageEvent, identity.Key(), jobID, string(kind), admitted, properties)
	return err
}

var _ EventSink = (*SQLEventSink)(nil)
