package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) impressiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("impression.service"),
	}
}

// Ingest records an impression fact. The row identity is derived from the
// source system, its row id and the impression type, so replays from either
// feed collapse onto the same row.
func (s *Service) Ingest(ctx context.Context, req impressiondomain.IngestImpressionRequest) (*impressiondomain.Impression, error) {
	sourceName := strings.TrimSpace(req.SourceSystemName)
	sourceID := strings.TrimSpace(req.SourceSystemID)
	if sourceName == "" || sourceID == "" {
		return nil, impressiondomain.ErrInvalidSource
	}
	device := strings.TrimSpace(req.DeviceNumber)
	if device == "" {
		return nil, impressiondomain.ErrInvalidDevice
	}
	if req.Date.IsZero() {
		return nil, impressiondomain.ErrInvalidDate
	}
	if !req.Type.Valid() {
		return nil, impressiondomain.ErrInvalidType
	}
	if math.IsNaN(req.TotalImpressions) || math.IsInf(req.TotalImpressions, 0) || req.TotalImpressions < 0 {
		return nil, impressiondomain.ErrInvalidValue
	}
	if req.Seconds < 0 || req.AdvertPlayouts < 0 {
		return nil, impressiondomain.ErrInvalidValue
	}

	id := fmt.Sprintf("%s:%s:%s", strings.ToLower(sourceName), sourceID, req.Type)

	existing, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := &impressiondomain.Impression{
		ID:               id,
		DeviceNumber:     device,
		Date:             req.Date.UTC().Truncate(24 * time.Hour),
		TotalImpressions: req.TotalImpressions,
		Seconds:          req.Seconds,
		AdvertPlayouts:   req.AdvertPlayouts,
		Type:             req.Type,
		SourceSystemName: sourceName,
		SourceSystemID:   sourceID,
		CreatedAt:        time.Now().UTC(),
	}
	if req.Raw != nil {
		record.Raw = datatypes.JSONMap(req.Raw)
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_system_id"}, {Name: "type"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return s.findByID(ctx, id)
	}
	return record, nil
}

func (s *Service) findByID(ctx context.Context, id string) (*impressiondomain.Impression, error) {
	var record impressiondomain.Impression
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
