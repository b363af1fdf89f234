package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/pkg/db"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&domain.Product{}))
	return conn
}

func price(v int64) *int64 { return &v }

func seed(t *testing.T, conn *gorm.DB, companyID int64, name string, p *int64, createdOn time.Time) domain.Product {
	t.Helper()
	item := domain.Product{
		CompanyID:   companyID,
		UUID:        uuid.NewString(),
		Name:        name,
		Description: name + " description",
		Price:       p,
		CreatedOn:   createdOn,
		CreatedBy:   "alice",
		UpdatedOn:   createdOn,
		UpdatedBy:   "alice",
	}
	require.NoError(t, Provide().Create(context.Background(), conn, &item))
	return item
}

func parseListing(t *testing.T, companyID int64, p option.Params) option.Listing {
	t.Helper()
	p.LocalFilters = []string{fmt.Sprintf("company_id eq %d", companyID)}
	listing, err := domain.Listing.Parse(p)
	require.NoError(t, err)
	return listing
}

func TestRequiredColumnsAreEnforced(t *testing.T) {
	conn := setupDB(t)

	columns := map[string]string{
		"company_id":  "1",
		"name":        "'Tea'",
		"description": "'Leaves'",
		"created_by":  "'alice'",
		"updated_by":  "'alice'",
	}
	for omitted := range columns {
		t.Run(omitted, func(t *testing.T) {
			names := []string{"uuid"}
			values := []string{fmt.Sprintf("'%s'", uuid.NewString())}
			for col, val := range columns {
				if col == omitted {
					continue
				}
				names = append(names, col)
				values = append(values, val)
			}
			stmt := fmt.Sprintf("INSERT INTO product (%s) VALUES (%s)", strings.Join(names, ", "), strings.Join(values, ", "))
			err := conn.Exec(stmt).Error
			require.Error(t, err)
			assert.True(t, db.IsNotNullErr(err), "unexpected error: %v", err)
		})
	}
}

func TestOptionalColumnsDefault(t *testing.T) {
	conn := setupDB(t)
	id := uuid.NewString()

	before := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, conn.Exec(
		"INSERT INTO product (uuid, company_id, name, description, created_by, updated_by) VALUES (?, ?, ?, ?, ?, ?)",
		id, 1, "Tea", "Leaves", "alice", "alice",
	).Error)

	got, err := Provide().FindByUUID(context.Background(), conn, id, domain.FindOption{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Price)
	assert.True(t, got.CreatedOn.After(before), "created_on %v", got.CreatedOn)
	assert.True(t, got.UpdatedOn.After(before), "updated_on %v", got.UpdatedOn)
}

func TestDuplicateUUIDRejected(t *testing.T) {
	conn := setupDB(t)
	first := seed(t, conn, 1, "Tea", nil, time.Now().UTC())

	dup := first
	dup.Name = "Coffee"
	err := Provide().Create(context.Background(), conn, &dup)
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err), "unexpected error: %v", err)
}

func TestFindByUUIDMissing(t *testing.T) {
	conn := setupDB(t)
	got, err := Provide().FindByUUID(context.Background(), conn, uuid.NewString(), domain.FindOption{ForUpdate: true})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNameExists(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()
	ctx := context.Background()
	tea := seed(t, conn, 1, "Green Tea", nil, time.Now().UTC())

	exists, err := repo.NameExists(ctx, conn, 1, "green tea", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.NameExists(ctx, conn, 1, "GREEN TEA", tea.UUID)
	require.NoError(t, err)
	assert.False(t, exists, "own row must be excluded")

	exists, err = repo.NameExists(ctx, conn, 2, "Green Tea", "")
	require.NoError(t, err)
	assert.False(t, exists, "other companies do not collide")
}

func TestListOrdersPagesAndScopes(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	oldest := seed(t, conn, 1, "Coffee", price(1250), base)
	middle := seed(t, conn, 1, "Black Tea", price(900), base.Add(time.Hour))
	newest := seed(t, conn, 1, "Green Tea", price(1200), base.Add(2*time.Hour))
	seed(t, conn, 2, "Green Tea", price(1200), base.Add(3*time.Hour))

	listing := parseListing(t, 1, option.Params{})
	res, err := repo.List(context.Background(), conn, listing, pagination.Pagination{Page: 1, Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, []string{newest.UUID, middle.UUID, oldest.UUID}, res.IDs)
	require.Len(t, res.Items, 2)
	assert.Equal(t, newest.UUID, res.Items[0].UUID)
	assert.Equal(t, middle.UUID, res.Items[1].UUID)

	res, err = repo.List(context.Background(), conn, listing, pagination.Pagination{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, oldest.UUID, res.Items[0].UUID)

	res, err = repo.List(context.Background(), conn, listing, pagination.Pagination{Page: 5, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Len(t, res.IDs, 3)
}

func TestListFiltersSortsAndSearch(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	coffee := seed(t, conn, 1, "Coffee", price(1250), base)
	black := seed(t, conn, 1, "Black Tea", price(900), base.Add(time.Hour))
	green := seed(t, conn, 1, "Green Tea", price(1200), base.Add(2*time.Hour))
	water := seed(t, conn, 1, "Water", nil, base.Add(3*time.Hour))

	cases := []struct {
		name   string
		params option.Params
		want   []string
	}{
		{
			name:   "price range sorted ascending",
			params: option.Params{Filters: []string{"price gte 1000"}, Sorts: []string{"price asc"}},
			want:   []string{green.UUID, coffee.UUID},
		},
		{
			name:   "name in quoted list",
			params: option.Params{Filters: []string{`name in ("Black Tea" Water)`}, Sorts: []string{"name desc"}},
			want:   []string{water.UUID, black.UUID},
		},
		{
			name:   "case-insensitive search",
			params: option.Params{Search: "TEA", Sorts: []string{"name asc"}},
			want:   []string{black.UUID, green.UUID},
		},
		{
			name:   "numeric search matches price prefix",
			params: option.Params{Search: "12"},
			want:   []string{green.UUID, coffee.UUID},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			listing := parseListing(t, 1, tc.params)
			res, err := repo.List(context.Background(), conn, listing, pagination.Pagination{Page: 1, Limit: 10})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.IDs)
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	conn := setupDB(t)
	repo := Provide()
	ctx := context.Background()
	item := seed(t, conn, 1, "Tea", price(100), time.Now().UTC())

	item.Name = "Chai"
	item.Price = nil
	item.UpdatedBy = "bob"
	require.NoError(t, repo.Update(ctx, conn, &item))

	got, err := repo.FindByUUID(ctx, conn, item.UUID, domain.FindOption{})
	require.NoError(t, err)
	assert.Equal(t, "Chai", got.Name)
	assert.Nil(t, got.Price)
	assert.Equal(t, "bob", got.UpdatedBy)

	other := item
	other.CompanyID = 2
	assert.ErrorIs(t, repo.Update(ctx, conn, &other), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, conn, 2, item.UUID), domain.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, conn, 1, item.UUID))
	count, err := repo.Count(ctx, conn)
	require.NoError(t, err)
	assert.Zero(t, count)
}
