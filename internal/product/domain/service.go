package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/catalog/pkg/db/pagination"
)

//go:generate mockgen -destination=mock/service_mock.go -package=mock . Service

type Service interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Store(ctx context.Context, req CreateRequest) (*Response, error)
	Show(ctx context.Context, uuid string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, uuid string) error
}

type ListRequest struct {
	Limit   int      `form:"limit" json:"limit" validate:"gte=0"`
	Page    int      `form:"page" json:"page" validate:"gte=0"`
	Search  string   `form:"search" json:"search"`
	Filters []string `form:"filters" json:"filters"`
	Sorts   []string `form:"sort" json:"sort"`
}

type CreateRequest struct {
	Name        string `json:"name" validate:"required,max=25"`
	Description string `json:"description"`
	Price       *int64 `json:"price" validate:"omitempty,gte=0"`
}

// Normalize collapses runs of whitespace in name and description.
func (r *CreateRequest) Normalize() {
	r.Name = collapseSpaces(r.Name)
	r.Description = collapseSpaces(r.Description)
}

type UpdateRequest struct {
	UUID        string `json:"-"`
	Name        string `json:"name" validate:"required,max=25"`
	Description string `json:"description"`
	Price       *int64 `json:"price" validate:"omitempty,gte=0"`
}

func (r *UpdateRequest) Normalize() {
	r.Name = collapseSpaces(r.Name)
	r.Description = collapseSpaces(r.Description)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type Response struct {
	UUID        string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       *int64    `json:"price"`
	CreatedOn   time.Time `json:"created_on"`
	CreatedBy   string    `json:"created_by"`
	UpdatedOn   time.Time `json:"updated_on"`
	UpdatedBy   string    `json:"updated_by"`
}

func NewResponse(p *Product) Response {
	return Response{
		UUID:        p.UUID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		CreatedOn:   p.CreatedOn,
		CreatedBy:   p.CreatedBy,
		UpdatedOn:   p.UpdatedOn,
		UpdatedBy:   p.UpdatedBy,
	}
}

type ListData struct {
	PaginatedResult []Response `json:"paginated_result"`
	IDs             []string   `json:"ids"`
}

type ListResponse struct {
	Metadata pagination.Metadata `json:"metadata"`
	Data     ListData            `json:"data"`
}

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already_exists")
	ErrNameLocked    = errors.New("name_locked")
	ErrRateLimited   = errors.New("rate_limited")
)

// RateLimitError carries how long the caller should wait before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
