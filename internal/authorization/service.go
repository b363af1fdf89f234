package authorization

import (
	"context"
	"errors"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidAction = errors.New("invalid_action")
)

// Service authorizes the credential in ctx to perform an action on products.
type Service interface {
	Authorize(ctx context.Context, object string, action string) error
}
