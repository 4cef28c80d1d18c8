package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storyforge/internal/domain"
)

type recordingExecutor struct {
	err   error
	query string
	args  []any
}

func (r *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	r.query = query
	r.args = args
	return pgconn.CommandTag{}, r.err
}

func (r *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return nil
}

func (r *recordingExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func TestRecordUsageEventInsertsRow(t *testing.T) {
	exec := &recordingExecutor{}
	sink := NewSQLEventSink(exec)
	identity := domain.AnonymousIdentity("session-42")

	err := sink.RecordUsageEvent(context.Background(), identity, "job-1", domain.ContentKindImage, true)
	if err != nil {
		t.Fatalf("RecordUsageEvent: %v", err)
	}
	if len(exec.args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(exec.args))
	}
	if exec.args[0] != "anonymous:session-42" {
		t.Fatalf("identity arg = %v", exec.args[0])
	}
	if exec.args[1] != "job-1" {
		t.Fatalf("job arg = %v", exec.args[1])
	}
	if exec.args[2] != "image" {
		t.Fatalf("kind arg = %v", exec.args[2])
	}
	if exec.args[3] != true {
		t.Fatalf("admitted arg = %v", exec.args[3])
	}
}

func TestRecordUsageEventPropagatesError(t *testing.T) {
	insertErr := errors.New("insert failed")
	sink := NewSQLEventSink(&recordingExecutor{err: insertErr})

	err := sink.RecordUsageEvent(context.Background(), domain.UserIdentity("u-1"), "", domain.ContentKindVideo, false)
	if !errors.Is(err, insertErr) {
		t.Fatalf("err = %v, want %v", err, insertErr)
	}
}
