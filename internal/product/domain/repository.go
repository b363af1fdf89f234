package domain

import (
	"context"

	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
)

type FindOption struct {
	// ForUpdate locks the row until the surrounding transaction ends.
	ForUpdate bool
}

type ListResult struct {
	Items []Product
	// IDs holds every matching uuid in listing order, not only the page.
	IDs   []string
	Total int64
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	FindByUUID(ctx context.Context, db *gorm.DB, uuid string, opt FindOption) (*Product, error)
	NameExists(ctx context.Context, db *gorm.DB, companyID int64, name string, excludeUUID string) (bool, error)
	List(ctx context.Context, db *gorm.DB, listing option.Listing, page pagination.Pagination) (*ListResult, error)
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	Delete(ctx context.Context, db *gorm.DB, companyID int64, uuid string) error
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
