package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/cache"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var saleTimePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	ResolverCache cache.IngestResolverCache
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	resolverCache cache.IngestResolverCache
}

func New(p Params) saledomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("sale.service"),
		genID:         p.GenID,
		resolverCache: p.ResolverCache,
	}
}

// Ingest records a sale fact. Re-submitting the same source_system_id never
// duplicates the row; the existing fact is returned as-is.
func (s *Service) Ingest(ctx context.Context, req saledomain.IngestSaleRequest) (*saledomain.Sale, error) {
	sourceID := strings.TrimSpace(req.SourceSystemID)
	if sourceID == "" {
		return nil, saledomain.ErrInvalidSourceID
	}
	if req.MachineID == 0 {
		return nil, saledomain.ErrInvalidMachine
	}
	if req.ProductID == 0 {
		return nil, saledomain.ErrInvalidProduct
	}
	if req.SaleDate.IsZero() {
		return nil, saledomain.ErrInvalidDate
	}
	if req.Quantity <= 0 {
		return nil, saledomain.ErrInvalidQuantity
	}
	saleTime := strings.TrimSpace(req.SaleTime)
	if saleTime == "" || !saleTimePattern.MatchString(saleTime) {
		return nil, saledomain.ErrInvalidDate
	}

	// Idempotency first: a retried upstream event must return the accepted
	// fact unchanged, whatever else changed since.
	existing, err := s.findBySourceID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if err := s.ensureMachineExists(ctx, req.MachineID); err != nil {
		return nil, err
	}
	if err := s.ensureProductExists(ctx, req.ProductID); err != nil {
		return nil, err
	}

	day := req.SaleDate.UTC().Truncate(24 * time.Hour)
	record := &saledomain.Sale{
		ID:             s.genID.Generate(),
		SaleDate:       day,
		SaleTime:       saleTime,
		Quantity:       req.Quantity,
		SourceSystemID: sourceID,
		ProductID:      req.ProductID,
		MachineID:      req.MachineID,
		CreatedAt:      time.Now().UTC(),
	}
	if req.Raw != nil {
		record.Raw = datatypes.JSONMap(req.Raw)
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_system_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race against a concurrent retry.
		return s.findBySourceID(ctx, sourceID)
	}
	return record, nil
}

func (s *Service) findBySourceID(ctx context.Context, sourceID string) (*saledomain.Sale, error) {
	var record saledomain.Sale
	err := s.db.WithContext(ctx).
		Where("source_system_id = ?", sourceID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (s *Service) ensureMachineExists(ctx context.Context, id snowflake.ID) error {
	if s.resolverCache != nil && s.resolverCache.MachineKnown(id) {
		return nil
	}
	var exists bool
	if err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS(SELECT 1 FROM machines WHERE id = ?)`,
		id,
	).Scan(&exists).Error; err != nil {
		return err
	}
	if !exists {
		return saledomain.ErrInvalidMachine
	}
	if s.resolverCache != nil {
		s.resolverCache.RememberMachine(id)
	}
	return nil
}

func (s *Service) ensureProductExists(ctx context.Context, id snowflake.ID) error {
	if s.resolverCache != nil && s.resolverCache.ProductKnown(id) {
		return nil
	}
	var exists bool
	if err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`,
		id,
	).Scan(&exists).Error; err != nil {
		return err
	}
	if !exists {
		return saledomain.ErrInvalidProduct
	}
	if s.resolverCache != nil {
		s.resolverCache.RememberProduct(id)
	}
	return nil
}
