package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(product).Error
}

func (r *repo) FindByUUID(ctx context.Context, db *gorm.DB, uuid string, opt domain.FindOption) (*domain.Product, error) {
	stmt := db.WithContext(ctx).Where("uuid = ?", uuid)
	// sqlite has no row locks; its writers are already serialized
	if opt.ForUpdate && db.Dialector.Name() == "postgres" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var p domain.Product
	if err := stmt.First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repo) NameExists(ctx context.Context, db *gorm.DB, companyID int64, name string, excludeUUID string) (bool, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("company_id = ? AND LOWER(name) = LOWER(?)", companyID, name)
	if excludeUUID != "" {
		stmt = stmt.Where("uuid <> ?", excludeUUID)
	}

	var count int64
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// List resolves every matching uuid in listing order, then loads only the requested page.
func (r *repo) List(ctx context.Context, db *gorm.DB, listing option.Listing, page pagination.Pagination) (*domain.ListResult, error) {
	matching := option.Apply(db.WithContext(ctx).Model(&domain.Product{}), listing.Where()...)
	matching = listing.Order().Apply(matching)

	ids := make([]string, 0)
	if err := matching.Pluck("uuid", &ids).Error; err != nil {
		return nil, err
	}

	result := &domain.ListResult{
		Items: make([]domain.Product, 0),
		IDs:   ids,
		Total: int64(len(ids)),
	}

	start, end := pagination.Window(page, len(ids))
	if start == end {
		return result, nil
	}

	stmt := db.WithContext(ctx).Where("uuid IN ?", ids[start:end])
	if err := listing.Order().Apply(stmt).Find(&result.Items).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	res := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("uuid = ? AND company_id = ?", product.UUID, product.CompanyID).
		Updates(map[string]any{
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"updated_on":  product.UpdatedOn,
			"updated_by":  product.UpdatedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, companyID int64, uuid string) error {
	res := db.WithContext(ctx).
		Where("uuid = ? AND company_id = ?", uuid, companyID).
		Delete(&domain.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Product{}).Count(&count).Error
	return count, err
}
