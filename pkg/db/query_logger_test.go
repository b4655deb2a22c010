package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/packfinderz-ledger/pkg/logger"
)

func newQueryLogger(buf *bytes.Buffer, threshold time.Duration) *QueryLogger {
	return NewQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), threshold)
}

func sqlFn(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 3 }
}

func TestQueryLoggerSlowQuery(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(&buf, 10*time.Millisecond)
	q.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn("SELECT * FROM ledger_events"), nil)

	out := buf.String()
	if !strings.Contains(out, "db.query.slow") || !strings.Contains(out, "ledger_events") {
		t.Fatalf("expected slow query entry, got %s", out)
	}
}

func TestQueryLoggerFastQueryIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(&buf, time.Second)
	q.Trace(context.Background(), time.Now(), sqlFn("SELECT 1"), nil)
	q.Trace(context.Background(), time.Now(), sqlFn("SELECT 1"), gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %s", buf.String())
	}
}

func TestQueryLoggerFailure(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(&buf, 0)
	q.Trace(context.Background(), time.Now(), sqlFn("UPDATE inventory_items"), errors.New("deadlock detected"))
	if !strings.Contains(buf.String(), "db.query.failed") {
		t.Fatalf("expected failure entry, got %s", buf.String())
	}
}

func TestQueryLoggerSilentMode(t *testing.T) {
	var buf bytes.Buffer
	q := newQueryLogger(&buf, time.Millisecond).LogMode(gormlogger.Silent)
	q.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn("SELECT 1"), errors.New("boom"))
	if buf.Len() != 0 {
		t.Fatalf("expected silent logger, got %s", buf.String())
	}
}
