package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/clock"
	"github.com/vendwatch/vendwatch/internal/export"
	"github.com/vendwatch/vendwatch/internal/schedule/domain"
	"github.com/vendwatch/vendwatch/pkg/db"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("schedule.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateScheduleRequest) (domain.ReportSchedule, error) {
	if req.OwnerID == 0 {
		return domain.ReportSchedule{}, domain.ErrInvalidOwner
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ReportSchedule{}, domain.ErrInvalidName
	}
	if !req.Kind.Valid() {
		return domain.ReportSchedule{}, domain.ErrInvalidKind
	}
	format, err := export.ParseFormat(string(req.Format))
	if err != nil {
		return domain.ReportSchedule{}, err
	}
	if !req.Recurrence.Valid() {
		return domain.ReportSchedule{}, domain.ErrInvalidRecurrence
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		return domain.ReportSchedule{}, domain.ErrInvalidRecipient
	}
	doc, err := json.Marshal(req.Filter)
	if err != nil {
		return domain.ReportSchedule{}, domain.ErrInvalidFilter
	}

	now := s.clock.Now()
	sched := domain.ReportSchedule{
		ID:         s.genID.Generate(),
		OwnerID:    req.OwnerID,
		Name:       name,
		Kind:       req.Kind,
		Format:     format,
		Recurrence: req.Recurrence,
		Filter:     doc,
		Recipient:  recipient,
		Active:     true,
		NextRunAt:  req.Recurrence.Next(now),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&sched).Error; err != nil {
		if db.IsForeignKeyErr(err) {
			return domain.ReportSchedule{}, domain.ErrInvalidOwner
		}
		return domain.ReportSchedule{}, err
	}
	return sched, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.ReportSchedule, error) {
	var sched domain.ReportSchedule
	err := s.db.WithContext(ctx).First(&sched, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ReportSchedule{}, domain.ErrNotFound
		}
		return domain.ReportSchedule{}, err
	}
	return sched, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSchedulesRequest) (pagination.Page[domain.ReportSchedule], error) {
	page := req.Pagination.Normalize()

	stmt := s.db.WithContext(ctx).Model(&domain.ReportSchedule{})
	if req.OwnerID != 0 {
		stmt = stmt.Where("owner_id = ?", req.OwnerID)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return pagination.Page[domain.ReportSchedule]{}, err
	}

	var items []domain.ReportSchedule
	err := stmt.Order("next_run_at ASC, id ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&items).Error
	if err != nil {
		return pagination.Page[domain.ReportSchedule]{}, err
	}
	return pagination.NewPage(items, total, page), nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateScheduleRequest) (domain.ReportSchedule, error) {
	sched, err := s.GetByID(ctx, req.ID)
	if err != nil {
		return domain.ReportSchedule{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.ReportSchedule{}, domain.ErrInvalidName
		}
		sched.Name = name
	}
	if req.Format != nil {
		format, err := export.ParseFormat(string(*req.Format))
		if err != nil {
			return domain.ReportSchedule{}, err
		}
		sched.Format = format
	}
	if req.Recurrence != nil {
		if !req.Recurrence.Valid() {
			return domain.ReportSchedule{}, domain.ErrInvalidRecurrence
		}
		sched.Recurrence = *req.Recurrence
	}
	if req.Filter != nil {
		doc, err := json.Marshal(*req.Filter)
		if err != nil {
			return domain.ReportSchedule{}, domain.ErrInvalidFilter
		}
		sched.Filter = doc
	}
	if req.Recipient != nil {
		recipient := strings.TrimSpace(*req.Recipient)
		if recipient == "" {
			return domain.ReportSchedule{}, domain.ErrInvalidRecipient
		}
		sched.Recipient = recipient
	}
	if req.Active != nil {
		sched.Active = *req.Active
	}
	sched.UpdatedAt = s.clock.Now()

	if err := s.db.WithContext(ctx).Save(&sched).Error; err != nil {
		return domain.ReportSchedule{}, err
	}
	return sched, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	result := s.db.WithContext(ctx).Delete(&domain.ReportSchedule{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) Due(ctx context.Context, now time.Time, limit int) ([]domain.ReportSchedule, error) {
	var due []domain.ReportSchedule
	err := s.db.WithContext(ctx).
		Where("active = ? AND next_run_at <= ?", true, now.UTC()).
		Order("next_run_at ASC, id ASC").
		Limit(limit).
		Find(&due).Error
	return due, err
}

// Claim advances next_run_at with the previous value as an optimistic guard,
// so concurrent runners sharing a database hand out each cycle exactly once.
// The next run is anchored on now, not the missed slot; a runner that was
// down for days delivers one catch-up report instead of replaying a backlog.
func (s *Service) Claim(ctx context.Context, sched domain.ReportSchedule, now time.Time) (bool, error) {
	now = now.UTC()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE report_schedules
		 SET next_run_at = ?, last_run_at = ?, updated_at = ?
		 WHERE id = ? AND active = ? AND next_run_at = ?`,
		sched.Recurrence.Next(now),
		now,
		now,
		sched.ID,
		true,
		sched.NextRunAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
