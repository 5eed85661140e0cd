package usage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/docentlabs/docent/internal/rag"
)

type fakeExecer struct {
	err  error
	sqls []string
	args [][]any
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, f.err
}

func TestRecord(t *testing.T) {
	db := &fakeExecer{}
	store := New(db, nil)

	rec := rag.UsageRecord{
		ModelID:      "gemini-2.5-flash",
		InputTokens:  10,
		OutputTokens: 20,
		UserQuery:    "what is s3",
		LatencyMS:    340,
		CreatedAt:    time.Now(),
	}
	if err := store.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record() = %v", err)
	}

	if len(db.sqls) != 1 || !strings.Contains(db.sqls[0], "INSERT INTO query_usage") {
		t.Fatalf("unexpected statements: %v", db.sqls)
	}

	args := db.args[0]
	if len(args) != 7 {
		t.Fatalf("got %d args, want 7", len(args))
	}
	if _, err := uuid.Parse(args[0].(string)); err != nil {
		t.Errorf("first arg %v is not a UUID", args[0])
	}
	if args[1] != "gemini-2.5-flash" || args[2] != 10 || args[3] != 20 {
		t.Errorf("args = %v", args)
	}
}

func TestRecordError(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection closed")}
	store := New(db, nil)

	if err := store.Record(context.Background(), rag.UsageRecord{}); err == nil {
		t.Error("Record() = nil, want error")
	}
}

func TestRefreshMetrics(t *testing.T) {
	db := &fakeExecer{}
	store := New(db, nil)

	if err := store.RefreshMetrics(context.Background()); err != nil {
		t.Fatalf("RefreshMetrics() = %v", err)
	}

	if len(db.sqls) != 1 || !strings.Contains(db.sqls[0], "ON CONFLICT (metric_date, metric_type)") {
		t.Fatalf("unexpected statements: %v", db.sqls)
	}
}
