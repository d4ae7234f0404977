package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/geography/domain"
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
	repo  repository.Repository[domain.Geography]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("geography.service"),
		genID: p.GenID,
		repo:  repository.ProvideStore[domain.Geography](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateGeographyRequest) (domain.Geography, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Geography{}, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	geo := domain.Geography{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if postcode := strings.TrimSpace(req.Postcode); postcode != "" {
		geo.Postcode = &postcode
	}
	if mapID := strings.TrimSpace(req.MapLocationID); mapID != "" {
		geo.MapLocationID = &mapID
	}

	if err := s.repo.Create(ctx, &geo); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Geography{}, domain.ErrNameTaken
		}
		return domain.Geography{}, err
	}
	return geo, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateGeographyRequest) (domain.Geography, error) {
	if req.ID == 0 {
		return domain.Geography{}, domain.ErrInvalidID
	}
	existing, err := s.repo.FindOne(ctx, &domain.Geography{ID: req.ID})
	if err != nil {
		return domain.Geography{}, err
	}
	if existing == nil {
		return domain.Geography{}, domain.ErrNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		existing.Name = name
	}
	if req.Postcode != nil {
		existing.Postcode = req.Postcode
	}
	if req.MapLocationID != nil {
		existing.MapLocationID = req.MapLocationID
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Geography{}, domain.ErrNameTaken
		}
		return domain.Geography{}, err
	}
	return *existing, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Geography, error) {
	if id == 0 {
		return domain.Geography{}, domain.ErrInvalidID
	}
	geo, err := s.repo.FindOne(ctx, &domain.Geography{ID: id})
	if err != nil {
		return domain.Geography{}, err
	}
	if geo == nil {
		return domain.Geography{}, domain.ErrNotFound
	}
	return *geo, nil
}

func (s *Service) List(ctx context.Context, req domain.ListGeographyRequest) (pagination.Page[domain.Geography], error) {
	page := req.Pagination.Normalize()

	stmt := s.db.WithContext(ctx).Model(&domain.Geography{})
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(postcode, '')) LIKE ?", like, like)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return pagination.Page[domain.Geography]{}, err
	}

	stmt = option.WithSortBy(option.QuerySortBy{
		Allow:  map[string]bool{"name": true, "created_at": true},
		Fields: req.Sort,
	}).Apply(stmt)
	if stmt.Error != nil {
		return pagination.Page[domain.Geography]{}, stmt.Error
	}
	stmt = option.ApplyPagination(page).Apply(stmt)

	var items []domain.Geography
	if err := stmt.Order("name ASC").Find(&items).Error; err != nil {
		return pagination.Page[domain.Geography]{}, err
	}
	return pagination.NewPage(items, total, page), nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	err := s.repo.Delete(ctx, int64(id))
	if db.IsForeignKeyErr(err) {
		return domain.ErrInUse
	}
	return err
}
