package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"pg not null", &pgconn.PgError{Code: "23502"}, false},
		{"sqlite text", errors.New("UNIQUE constraint failed: product.uuid"), true},
		{"lib/pq text", errors.New(`pq: duplicate key value violates unique constraint "product_pkey"`), true},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tt.err); got != tt.want {
				t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsNotNullErr(t *testing.T) {
	if !IsNotNullErr(&pgconn.PgError{Code: "23502"}) {
		t.Fatalf("expected pg 23502 to be a not-null error")
	}
	if !IsNotNullErr(errors.New("NOT NULL constraint failed: product.name")) {
		t.Fatalf("expected sqlite text to be a not-null error")
	}
	if IsNotNullErr(nil) {
		t.Fatalf("expected nil to be false")
	}
}

func TestConfigURL(t *testing.T) {
	cfg := Config{User: "u", Password: "p", Host: "h", Port: "5432", Name: "catalog"}
	if got := cfg.URL(); got != "postgres://u:p@h:5432/catalog?sslmode=disable" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestDialectRejectsUnknownType(t *testing.T) {
	if _, err := Dialect(Config{Type: "mysql"}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
