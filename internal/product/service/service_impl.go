package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/product/domain"
	"github.com/vendwatch/vendwatch/pkg/db"
	"github.com/vendwatch/vendwatch/pkg/db/option"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
	"github.com/vendwatch/vendwatch/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node

	products   repository.Repository[domain.Product]
	categories repository.Repository[domain.ProductCategory]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,

		products:   repository.ProvideStore[domain.Product](p.DB),
		categories: repository.ProvideStore[domain.ProductCategory](p.DB),
	}
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.ProductCategory, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ProductCategory{}, domain.ErrInvalidName
	}
	now := time.Now().UTC()
	category := domain.ProductCategory{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.categories.Create(ctx, &category); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ProductCategory{}, domain.ErrNameTaken
		}
		return domain.ProductCategory{}, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.ProductCategory, error) {
	var categories []domain.ProductCategory
	err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *Service) Create(ctx context.Context, req domain.CreateProductRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, domain.ErrInvalidName
	}
	if req.PriceCents < 0 {
		return domain.Product{}, domain.ErrInvalidPrice
	}
	if req.CategoryID == 0 {
		return domain.Product{}, domain.ErrInvalidCategory
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:         s.genID.Generate(),
		Name:       name,
		PriceCents: req.PriceCents,
		CategoryID: req.CategoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.products.Create(ctx, &product); err != nil {
		if db.IsForeignKeyErr(err) {
			return domain.Product{}, domain.ErrInvalidCategory
		}
		return domain.Product{}, err
	}
	return product, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateProductRequest) (domain.Product, error) {
	if req.ID == 0 {
		return domain.Product{}, domain.ErrInvalidID
	}
	existing, err := s.products.FindOne(ctx, &domain.Product{ID: req.ID})
	if err != nil {
		return domain.Product{}, err
	}
	if existing == nil {
		return domain.Product{}, domain.ErrNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		existing.Name = name
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, domain.ErrInvalidPrice
		}
		existing.PriceCents = *req.PriceCents
	}
	if req.CategoryID != 0 {
		existing.CategoryID = req.CategoryID
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		if db.IsForeignKeyErr(err) {
			return domain.Product{}, domain.ErrInvalidCategory
		}
		return domain.Product{}, err
	}
	return *existing, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Product, error) {
	if id == 0 {
		return domain.Product{}, domain.ErrInvalidID
	}
	product, err := s.products.FindOne(ctx, &domain.Product{ID: id})
	if err != nil {
		return domain.Product{}, err
	}
	if product == nil {
		return domain.Product{}, domain.ErrNotFound
	}
	return *product, nil
}

func (s *Service) List(ctx context.Context, req domain.ListProductRequest) (pagination.Page[domain.Product], error) {
	page := req.Pagination.Normalize()

	stmt := s.db.WithContext(ctx).Model(&domain.Product{})
	if search := strings.TrimSpace(req.Search); search != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if len(req.CategoryIDs) > 0 {
		stmt = stmt.Where("category_id IN ?", req.CategoryIDs)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return pagination.Page[domain.Product]{}, err
	}

	stmt = option.WithSortBy(option.QuerySortBy{
		Allow:  map[string]bool{"name": true, "price_cents": true, "created_at": true},
		Fields: req.Sort,
	}).Apply(stmt)
	if stmt.Error != nil {
		return pagination.Page[domain.Product]{}, stmt.Error
	}
	stmt = option.ApplyPagination(page).Apply(stmt)

	var items []domain.Product
	if err := stmt.Order("name ASC").Find(&items).Error; err != nil {
		return pagination.Page[domain.Product]{}, err
	}
	return pagination.NewPage(items, total, page), nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	err := s.products.Delete(ctx, int64(id))
	if db.IsForeignKeyErr(err) {
		return domain.ErrInUse
	}
	return err
}
