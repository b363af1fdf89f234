package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/smallbiznis/catalog/internal/authorization"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/credential"
	"github.com/smallbiznis/catalog/internal/product/cache"
	"github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/internal/product/repository"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&domain.Product{}))

	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)

	log := zap.NewNop()
	svc := New(Params{
		DB:      conn,
		Log:     log,
		Repo:    repository.Provide(),
		Authz:   authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		Cache:   cache.New(cache.Params{Config: config.Config{Cache: config.CacheConfig{ProductTTLSeconds: 60}}, Log: log}),
		Listing: config.NewStaticListingConfigHolder(config.ListingConfig{DefaultLimit: 2, MaxLimit: 5}),
	})
	return svc.(*Service)
}

func asUser(companyID, userID int64, name, role string) context.Context {
	return credential.WithCredential(context.Background(), credential.Credential{
		CompanyID: companyID,
		UserID:    userID,
		UserName:  name,
		Role:      role,
	})
}

func price(v int64) *int64 { return &v }

func TestStoreNormalizesAndStamps(t *testing.T) {
	svc := newTestService(t)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	resp, err := svc.Store(asUser(1, 7, "alice", authorization.RoleMember), domain.CreateRequest{
		Name:        "  Green    Tea ",
		Description: "loose   leaf",
		Price:       price(1200),
	})
	require.NoError(t, err)

	_, err = uuid.Parse(resp.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Green Tea", resp.Name)
	assert.Equal(t, "loose leaf", resp.Description)
	assert.Equal(t, int64(1200), *resp.Price)
	assert.Equal(t, "alice", resp.CreatedBy)
	assert.Equal(t, "alice", resp.UpdatedBy)
	assert.True(t, fixed.Equal(resp.CreatedOn))
	assert.True(t, fixed.Equal(resp.UpdatedOn))
}

func TestStoreRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	svc := newTestService(t)
	ctx := asUser(1, 7, "alice", authorization.RoleMember)

	_, err := svc.Store(ctx, domain.CreateRequest{Name: "Green Tea"})
	require.NoError(t, err)

	_, err = svc.Store(ctx, domain.CreateRequest{Name: "green  TEA"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.Store(asUser(2, 8, "bob", authorization.RoleMember), domain.CreateRequest{Name: "Green Tea"})
	assert.NoError(t, err, "names are scoped per company")
}

func TestStoreValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := asUser(1, 7, "alice", authorization.RoleMember)

	cases := []struct {
		name  string
		req   domain.CreateRequest
		field string
	}{
		{name: "blank name", req: domain.CreateRequest{Name: "   "}, field: "Name"},
		{name: "long name", req: domain.CreateRequest{Name: strings.Repeat("x", 26)}, field: "Name"},
		{name: "negative price", req: domain.CreateRequest{Name: "Tea", Price: price(-1)}, field: "Price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Store(ctx, tc.req)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "unexpected error: %v", err)
			assert.Equal(t, tc.field, verrs[0].Field())
		})
	}
}

func TestAuthorization(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Store(context.Background(), domain.CreateRequest{Name: "Tea"})
	assert.ErrorIs(t, err, credential.ErrInvalidCredential)

	_, err = svc.Store(asUser(1, 9, "victor", authorization.RoleViewer), domain.CreateRequest{Name: "Tea"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	created, err := svc.Store(asUser(1, 7, "alice", authorization.RoleMember), domain.CreateRequest{Name: "Tea"})
	require.NoError(t, err)

	err = svc.Delete(asUser(1, 7, "alice", authorization.RoleMember), created.UUID)
	assert.ErrorIs(t, err, authorization.ErrForbidden, "members cannot delete")

	system := credential.WithCredential(context.Background(), credential.Credential{
		CompanyID: 1,
		UserName:  "billing",
		Role:      credential.RoleSystem,
	})
	require.NoError(t, svc.Delete(system, created.UUID))
}

func TestShowLookupRules(t *testing.T) {
	svc := newTestService(t)
	owner := asUser(1, 7, "alice", authorization.RoleOwner)

	created, err := svc.Store(owner, domain.CreateRequest{Name: "Tea"})
	require.NoError(t, err)

	got, err := svc.Show(owner, strings.ToUpper(created.UUID))
	require.NoError(t, err)
	assert.Equal(t, created.UUID, got.UUID)

	_, err = svc.Show(owner, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.Show(owner, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Show(asUser(2, 8, "bob", authorization.RoleOwner), created.UUID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateRefreshesAuditColumns(t *testing.T) {
	svc := newTestService(t)
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return created }

	item, err := svc.Store(asUser(1, 7, "alice", authorization.RoleMember), domain.CreateRequest{Name: "Tea", Price: price(100)})
	require.NoError(t, err)
	_, err = svc.Store(asUser(1, 7, "alice", authorization.RoleMember), domain.CreateRequest{Name: "Coffee"})
	require.NoError(t, err)

	// warm the cache so the update has something to invalidate
	_, err = svc.Show(asUser(1, 7, "alice", authorization.RoleMember), item.UUID)
	require.NoError(t, err)

	later := created.Add(time.Hour)
	svc.now = func() time.Time { return later }
	bob := asUser(1, 8, "bob", authorization.RoleMember)

	updated, err := svc.Update(bob, domain.UpdateRequest{UUID: item.UUID, Name: "Chai  Tea", Description: "spiced"})
	require.NoError(t, err)
	assert.Equal(t, "Chai Tea", updated.Name)
	assert.Nil(t, updated.Price)
	assert.Equal(t, "alice", updated.CreatedBy)
	assert.Equal(t, "bob", updated.UpdatedBy)
	assert.True(t, created.Equal(updated.CreatedOn))
	assert.True(t, later.Equal(updated.UpdatedOn))

	shown, err := svc.Show(bob, item.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Chai Tea", shown.Name)
	assert.True(t, later.Equal(shown.UpdatedOn))

	_, err = svc.Update(bob, domain.UpdateRequest{UUID: item.UUID, Name: "chai tea"})
	assert.NoError(t, err, "renaming to its own name is not a duplicate")

	_, err = svc.Update(bob, domain.UpdateRequest{UUID: item.UUID, Name: "COFFEE"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = svc.Update(asUser(2, 9, "eve", authorization.RoleMember), domain.UpdateRequest{UUID: item.UUID, Name: "Stolen"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Update(bob, domain.UpdateRequest{UUID: uuid.NewString(), Name: "Ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	svc := newTestService(t)
	owner := asUser(1, 7, "alice", authorization.RoleOwner)

	created, err := svc.Store(owner, domain.CreateRequest{Name: "Tea"})
	require.NoError(t, err)
	_, err = svc.Show(owner, created.UUID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(asUser(2, 8, "bob", authorization.RoleOwner), created.UUID), domain.ErrForbidden)
	require.NoError(t, svc.Delete(owner, created.UUID))

	_, err = svc.Show(owner, created.UUID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(owner, created.UUID), domain.ErrNotFound)
}

func TestListPaginatesWithinCompany(t *testing.T) {
	svc := newTestService(t)
	ctx := asUser(1, 7, "alice", authorization.RoleMember)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	var created []string
	for i, name := range []string{"Coffee", "Black Tea", "Green Tea"} {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		resp, err := svc.Store(ctx, domain.CreateRequest{Name: name, Price: price(int64(100 * (i + 1)))})
		require.NoError(t, err)
		created = append(created, resp.UUID)
	}
	_, err := svc.Store(asUser(2, 8, "bob", authorization.RoleMember), domain.CreateRequest{Name: "Other"})
	require.NoError(t, err)

	resp, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Metadata.Count)
	assert.Equal(t, 1, resp.Metadata.Page)
	assert.Equal(t, int64(3), resp.Metadata.TotalCount)
	assert.Equal(t, 2, resp.Metadata.TotalPage)
	assert.Equal(t, []string{created[2], created[1], created[0]}, resp.Data.IDs)
	require.Len(t, resp.Data.PaginatedResult, 2)
	assert.Equal(t, "Green Tea", resp.Data.PaginatedResult[0].Name)

	resp, err = svc.List(ctx, domain.ListRequest{Page: 9, Limit: 50})
	require.NoError(t, err)
	assert.NotNil(t, resp.Data.PaginatedResult)
	assert.Empty(t, resp.Data.PaginatedResult)
	assert.Equal(t, 9, resp.Metadata.Page)
	assert.Equal(t, 1, resp.Metadata.TotalPage, "limit is capped at the configured maximum")

	resp, err = svc.List(ctx, domain.ListRequest{Filters: []string{"price lt 300"}, Sorts: []string{"price asc"}})
	require.NoError(t, err)
	assert.Equal(t, []string{created[0], created[1]}, resp.Data.IDs)
}

func TestListRejectsBadParameters(t *testing.T) {
	svc := newTestService(t)
	ctx := asUser(1, 7, "alice", authorization.RoleMember)

	_, err := svc.List(ctx, domain.ListRequest{
		Filters: []string{"price gt 10", "company_id eq 2"},
		Sorts:   []string{"name sideways"},
	})
	var verrs option.ValidationErrors
	require.True(t, errors.As(err, &verrs), "unexpected error: %v", err)

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"filters.2", "sort.1"}, fields)

	_, err = svc.List(ctx, domain.ListRequest{Limit: -1})
	var fieldErrs validator.ValidationErrors
	assert.True(t, errors.As(err, &fieldErrs))
}

// interleavingRepo runs after once, right after the next plain FindByUUID
// returns, so a write lands between a cache miss and its fill.
type interleavingRepo struct {
	domain.Repository
	after func()
}

func (r *interleavingRepo) FindByUUID(ctx context.Context, db *gorm.DB, id string, opt domain.FindOption) (*domain.Product, error) {
	item, err := r.Repository.FindByUUID(ctx, db, id, opt)
	if fn := r.after; fn != nil && !opt.ForUpdate {
		r.after = nil
		fn()
	}
	return item, err
}

func TestShowDoesNotCacheRowReplacedDuringRead(t *testing.T) {
	svc := newTestService(t)
	owner := asUser(1, 7, "alice", authorization.RoleOwner)

	created, err := svc.Store(owner, domain.CreateRequest{Name: "Old"})
	require.NoError(t, err)

	repo := &interleavingRepo{Repository: svc.repo}
	svc.repo = repo
	repo.after = func() {
		_, err := svc.Update(owner, domain.UpdateRequest{UUID: created.UUID, Name: "New"})
		require.NoError(t, err)
	}

	stale, err := svc.Show(owner, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Old", stale.Name, "the read began before the update")

	shown, err := svc.Show(owner, created.UUID)
	require.NoError(t, err)
	assert.Equal(t, "New", shown.Name)
}

func TestShowDoesNotResurrectRowDeletedDuringRead(t *testing.T) {
	svc := newTestService(t)
	owner := asUser(1, 7, "alice", authorization.RoleOwner)

	created, err := svc.Store(owner, domain.CreateRequest{Name: "Tea"})
	require.NoError(t, err)

	repo := &interleavingRepo{Repository: svc.repo}
	svc.repo = repo
	repo.after = func() {
		require.NoError(t, svc.Delete(owner, created.UUID))
	}

	_, err = svc.Show(owner, created.UUID)
	require.NoError(t, err)

	_, err = svc.Show(owner, created.UUID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
