package credential

import (
	"context"
	"testing"
)

func TestCredentialRoundTripThroughContext(t *testing.T) {
	cred := Credential{CompanyID: 10, UserID: 3, UserName: "alice", Role: "admin"}
	ctx := WithCredential(context.Background(), cred)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatalf("expected credential in context")
	}
	if got != cred {
		t.Fatalf("unexpected credential %+v", got)
	}
	companyID, ok := CompanyIDFromContext(ctx)
	if !ok || companyID != 10 {
		t.Fatalf("expected company 10, got %d", companyID)
	}
}

func TestCredentialValidate(t *testing.T) {
	cases := []struct {
		name    string
		cred    Credential
		wantErr bool
	}{
		{name: "user", cred: Credential{CompanyID: 1, UserID: 2, UserName: "bob"}},
		{name: "system without user id", cred: Credential{CompanyID: 1, UserName: "billing", Role: RoleSystem}},
		{name: "missing company", cred: Credential{UserID: 2, UserName: "bob"}, wantErr: true},
		{name: "missing user", cred: Credential{CompanyID: 1, UserName: "bob"}, wantErr: true},
		{name: "blank name", cred: Credential{CompanyID: 1, UserID: 2, UserName: "  "}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cred.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSubject(t *testing.T) {
	if got := (Credential{UserID: 42}).Subject(); got != "user:42" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := (Credential{UserName: "sync", Role: RoleSystem}).Subject(); got != "system:sync" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected no credential")
	}
	if _, ok := CompanyIDFromContext(context.Background()); ok {
		t.Fatalf("expected no company")
	}
}
