package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/smallbiznis/catalog/internal/auth"
	"github.com/smallbiznis/catalog/internal/config"
)

func TestMigrateCommandTree(t *testing.T) {
	cmd := newMigrateCmd()
	for _, name := range []string{"up", "down", "steps", "goto", "version", "force", "revisions", "indexes"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Fatalf("missing migrate %s: %v", name, err)
		}
	}
}

func TestMigrateRevisionsNeedsNoDatabase(t *testing.T) {
	cmd := newMigrateCmd()
	cmd.SetArgs([]string{"revisions"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("revisions: %v", err)
	}
}

func TestMigrateRejectsNonPostgres(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")

	cmd := newMigrateCmd()
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for a sqlite database type")
	}
}

func TestTokenIssueRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	cmd := newTokenCmd()
	cmd.SetArgs([]string{"issue", "--company-id", "1", "--user-id", "2", "--user-name", "alice"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error without AUTH_JWT_SECRET")
	}
}

func TestTokenHashAppKey(t *testing.T) {
	var out bytes.Buffer
	cmd := newTokenCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hash-app-key", "internal-key"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("hash-app-key: %v", err)
	}

	k, err := auth.NewAppKey(config.Config{AppKeyHash: strings.TrimSpace(out.String())})
	if err != nil {
		t.Fatalf("printed hash does not load: %v", err)
	}
	if !k.Verify("internal-key") {
		t.Fatal("printed hash does not verify its key")
	}
}
