package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/smallbiznis/catalog/internal/authorization"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/credential"
	"github.com/smallbiznis/catalog/internal/observability/logger"
	"github.com/smallbiznis/catalog/internal/observability/metrics"
	"github.com/smallbiznis/catalog/internal/product/cache"
	"github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/internal/ratelimit"
	"github.com/smallbiznis/catalog/pkg/db"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

var validate = validator.New()

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Authz   authorization.Service
	Cache   cache.ProductCache
	Listing *config.ListingConfigHolder
	Limiter *ratelimit.ProductWriteLimiter `optional:"true"`
	Metrics *metrics.Metrics               `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	authz   authorization.Service
	cache   cache.ProductCache
	listing *config.ListingConfigHolder
	limiter *ratelimit.ProductWriteLimiter
	metrics *metrics.Metrics

	now func() time.Time
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("product.service"),
		repo:    p.Repo,
		authz:   p.Authz,
		cache:   p.Cache,
		listing: p.Listing,
		limiter: p.Limiter,
		metrics: p.Metrics,
		now:     time.Now,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	cred, err := s.authorize(ctx, authorization.ActionProductView)
	if err != nil {
		return nil, err
	}
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}

	limits := s.listing.Get()
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(limits.DefaultLimit, limits.MaxLimit)

	listing, err := domain.Listing.Parse(option.Params{
		Search:       req.Search,
		Filters:      req.Filters,
		Sorts:        req.Sorts,
		LocalFilters: []string{fmt.Sprintf("company_id eq %d", cred.CompanyID)},
	})
	if err != nil {
		return nil, err
	}

	result, err := s.repo.List(ctx, s.db, listing, page)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Response, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, domain.NewResponse(&result.Items[i]))
	}
	ids := result.IDs
	if ids == nil {
		ids = []string{}
	}

	return &domain.ListResponse{
		Metadata: pagination.NewMetadata(page, len(items), result.Total),
		Data: domain.ListData{
			PaginatedResult: items,
			IDs:             ids,
		},
	}, nil
}

func (s *Service) Store(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	cred, err := s.authorize(ctx, authorization.ActionProductCreate)
	if err != nil {
		return nil, err
	}
	req.Normalize()
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}
	if err := s.allowWrite(ctx, cred.CompanyID, opCreate); err != nil {
		return nil, err
	}

	token, locked, err := s.limiter.TryLockName(ctx, cred.CompanyID, req.Name)
	switch {
	case err != nil:
		logger.WithContext(ctx, s.log).Warn("product name lock unavailable", zap.Error(err))
	case !locked:
		return nil, domain.ErrNameLocked
	default:
		defer func() {
			if err := s.limiter.ReleaseName(context.WithoutCancel(ctx), cred.CompanyID, req.Name, token); err != nil {
				logger.WithContext(ctx, s.log).Warn("product name lock release failed", zap.Error(err))
			}
		}()
	}

	exists, err := s.repo.NameExists(ctx, s.db, cred.CompanyID, req.Name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAlreadyExists
	}

	now := s.now().UTC()
	actor := cred.Actor()
	p := &domain.Product{
		CompanyID:   cred.CompanyID,
		UUID:        uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CreatedOn:   now,
		CreatedBy:   actor,
		UpdatedOn:   now,
		UpdatedBy:   actor,
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}

	s.metrics.RecordProductWrite(ctx, opCreate)
	logger.WithContext(ctx, s.log).Info("product created", zap.String("product_uuid", p.UUID))

	resp := domain.NewResponse(p)
	return &resp, nil
}

func (s *Service) Show(ctx context.Context, id string) (*domain.Response, error) {
	cred, err := s.authorize(ctx, authorization.ActionProductView)
	if err != nil {
		return nil, err
	}
	productUUID, err := parseUUID(id)
	if err != nil {
		return nil, err
	}

	// the generation is read before the database so a concurrent
	// invalidation makes the fill below a no-op
	item, gen, cached := s.cache.Get(ctx, productUUID)
	if !cached {
		item, err = s.repo.FindByUUID(ctx, s.db, productUUID, domain.FindOption{})
		if err != nil {
			return nil, err
		}
	}
	if err := ensureOwned(item, cred.CompanyID); err != nil {
		return nil, err
	}
	if !cached {
		s.cache.Fill(ctx, item, gen)
	}

	resp := domain.NewResponse(item)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	cred, err := s.authorize(ctx, authorization.ActionProductUpdate)
	if err != nil {
		return nil, err
	}
	productUUID, err := parseUUID(req.UUID)
	if err != nil {
		return nil, err
	}
	req.UUID = productUUID
	req.Normalize()
	if err := validate.StructCtx(ctx, req); err != nil {
		return nil, err
	}
	if err := s.allowWrite(ctx, cred.CompanyID, opUpdate); err != nil {
		return nil, err
	}

	var updated *domain.Product
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByUUID(ctx, tx, productUUID, domain.FindOption{ForUpdate: true})
		if err != nil {
			return err
		}
		if err := ensureOwned(item, cred.CompanyID); err != nil {
			return err
		}

		exists, err := s.repo.NameExists(ctx, tx, cred.CompanyID, req.Name, productUUID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyExists
		}

		item.Name = req.Name
		item.Description = req.Description
		item.Price = req.Price
		item.UpdatedOn = s.now().UTC()
		item.UpdatedBy = cred.Actor()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordProductWrite(ctx, opUpdate)
	s.cache.Delete(ctx, productUUID)

	resp := domain.NewResponse(updated)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	cred, err := s.authorize(ctx, authorization.ActionProductDelete)
	if err != nil {
		return err
	}
	productUUID, err := parseUUID(id)
	if err != nil {
		return err
	}
	if err := s.allowWrite(ctx, cred.CompanyID, opDelete); err != nil {
		return err
	}

	item, err := s.repo.FindByUUID(ctx, s.db, productUUID, domain.FindOption{})
	if err != nil {
		return err
	}
	if err := ensureOwned(item, cred.CompanyID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, cred.CompanyID, productUUID); err != nil {
		return err
	}

	s.metrics.RecordProductWrite(ctx, opDelete)
	s.cache.Delete(ctx, productUUID)
	logger.WithContext(ctx, s.log).Info("product deleted", zap.String("product_uuid", productUUID))
	return nil
}

func (s *Service) authorize(ctx context.Context, action string) (credential.Credential, error) {
	if err := s.authz.Authorize(ctx, authorization.ObjectProduct, action); err != nil {
		return credential.Credential{}, err
	}
	cred, ok := credential.FromContext(ctx)
	if !ok {
		return credential.Credential{}, credential.ErrInvalidCredential
	}
	return cred, nil
}

// allowWrite takes a token from the company bucket. Redis failures let the write through.
func (s *Service) allowWrite(ctx context.Context, companyID int64, op string) error {
	if !s.limiter.Enabled() {
		return nil
	}
	res, err := s.limiter.AllowCompany(ctx, companyID)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("product write limiter unavailable", zap.Error(err))
		return nil
	}
	if !res.Allowed {
		s.metrics.RecordRateLimitDenied(ctx, op, "company_bucket")
		return &domain.RateLimitError{RetryAfter: res.RetryAfter}
	}
	s.metrics.RecordRateLimitAllowed(ctx, op)
	return nil
}

func parseUUID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", domain.ErrInvalidID
	}
	return parsed.String(), nil
}

func ensureOwned(item *domain.Product, companyID int64) error {
	if item == nil {
		return domain.ErrNotFound
	}
	if item.CompanyID != companyID {
		return domain.ErrForbidden
	}
	return nil
}
