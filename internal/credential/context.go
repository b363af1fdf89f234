package credential

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

const RoleSystem = "system"

var ErrInvalidCredential = errors.New("invalid_credential")

// Credential identifies the caller of a request.
type Credential struct {
	CompanyID int64
	UserID    int64
	UserName  string
	Role      string
}

// Validate reports whether the credential can act on company-scoped data.
func (c Credential) Validate() error {
	if c.CompanyID <= 0 || strings.TrimSpace(c.UserName) == "" {
		return ErrInvalidCredential
	}
	if c.Role != RoleSystem && c.UserID <= 0 {
		return ErrInvalidCredential
	}
	return nil
}

// Actor is the value written to created_by and updated_by.
func (c Credential) Actor() string {
	return strings.TrimSpace(c.UserName)
}

// Subject is the authorization subject for the credential.
func (c Credential) Subject() string {
	if c.Role == RoleSystem {
		return "system:" + c.Actor()
	}
	return "user:" + strconv.FormatInt(c.UserID, 10)
}

type contextKey struct{}

// WithCredential stores the credential in the context.
func WithCredential(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, contextKey{}, cred)
}

// FromContext returns the credential from context, if set.
func FromContext(ctx context.Context) (Credential, bool) {
	if ctx == nil {
		return Credential{}, false
	}
	cred, ok := ctx.Value(contextKey{}).(Credential)
	return cred, ok
}

// CompanyIDFromContext returns the credential company id, if set.
func CompanyIDFromContext(ctx context.Context) (int64, bool) {
	cred, ok := FromContext(ctx)
	if !ok || cred.CompanyID == 0 {
		return 0, false
	}
	return cred.CompanyID, true
}
