package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/catalog/internal/credential"
	obscontext "github.com/smallbiznis/catalog/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM product":                                   "SELECT",
		"  insert into product (uuid) values ($1)":                "INSERT",
		"CREATE INDEX product_company_id_hash_index ON product":   "CREATE",
		"(DELETE FROM product WHERE uuid = $1)":                   "DELETE",
		"":                                                        "UNKNOWN",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestWithContextAddsCredentialFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = credential.WithCredential(ctx, credential.Credential{CompanyID: 9, UserID: 1, UserName: "ann"})

	WithContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Fatalf("expected request id, got %v", fields["request_id"])
	}
	if fields["company_id"] != int64(9) {
		t.Fatalf("expected company id 9, got %v", fields["company_id"])
	}
	if fields["actor"] != "ann" {
		t.Fatalf("expected actor ann, got %v", fields["actor"])
	}
}

func TestGormLoggerTraceLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        500 * time.Millisecond,
		IgnoreRecordNotFound: true,
	})
	query := func() (string, int64) { return "SELECT * FROM product", 1 }

	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	if logs.Len() != 0 {
		t.Fatalf("expected record not found to be ignored")
	}

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	l.Trace(context.Background(), time.Now(), query, nil)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected error and slow query entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %s", entries[1].Level)
	}
	if entries[1].ContextMap()["operation"] != "SELECT" {
		t.Fatalf("expected operation field")
	}
}

func TestGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), DefaultGormLoggerConfig(false)).LogMode(gormlogger.Silent)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, errors.New("boom"))
	if logs.Len() != 0 {
		t.Fatalf("expected no logs in silent mode")
	}
}
