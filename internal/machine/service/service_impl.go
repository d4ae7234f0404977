package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/machine/domain"
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

	machines repository.Repository[domain.Machine]
	bridges  repository.Repository[domain.MachineImpression]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("machine.service"),
		genID: p.GenID,

		machines: repository.ProvideStore[domain.Machine](p.DB),
		bridges:  repository.ProvideStore[domain.MachineImpression](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMachineRequest) (domain.Machine, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Machine{}, domain.ErrInvalidName
	}
	if req.GeographyID == 0 {
		return domain.Machine{}, domain.ErrInvalidGeography
	}

	now := time.Now().UTC()
	machine := domain.Machine{
		ID:          s.genID.Generate(),
		Name:        name,
		GeographyID: req.GeographyID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if display := strings.TrimSpace(req.DisplayName); display != "" {
		machine.DisplayName = &display
	}

	if err := s.machines.Create(ctx, &machine); err != nil {
		if db.IsForeignKeyErr(err) {
			return domain.Machine{}, domain.ErrInvalidGeography
		}
		return domain.Machine{}, err
	}
	return machine, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateMachineRequest) (domain.Machine, error) {
	if req.ID == 0 {
		return domain.Machine{}, domain.ErrInvalidID
	}
	existing, err := s.machines.FindOne(ctx, &domain.Machine{ID: req.ID})
	if err != nil {
		return domain.Machine{}, err
	}
	if existing == nil {
		return domain.Machine{}, domain.ErrNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		existing.Name = name
	}
	if req.DisplayName != nil {
		existing.DisplayName = req.DisplayName
	}
	if req.GeographyID != 0 {
		existing.GeographyID = req.GeographyID
	}
	existing.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		if db.IsForeignKeyErr(err) {
			return domain.Machine{}, domain.ErrInvalidGeography
		}
		return domain.Machine{}, err
	}
	return *existing, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Machine, error) {
	if id == 0 {
		return domain.Machine{}, domain.ErrInvalidID
	}
	machine, err := s.machines.FindOne(ctx, &domain.Machine{ID: id})
	if err != nil {
		return domain.Machine{}, err
	}
	if machine == nil {
		return domain.Machine{}, domain.ErrNotFound
	}
	return *machine, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMachineRequest) (pagination.Page[domain.Machine], error) {
	page := req.Pagination.Normalize()

	stmt := s.db.WithContext(ctx).Model(&domain.Machine{})
	if search := strings.TrimSpace(req.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(display_name, '')) LIKE ?", like, like)
	}
	if len(req.GeographyIDs) > 0 {
		stmt = stmt.Where("geography_id IN ?", req.GeographyIDs)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return pagination.Page[domain.Machine]{}, err
	}

	stmt = option.WithSortBy(option.QuerySortBy{
		Allow:  map[string]bool{"name": true, "created_at": true, "geography_id": true},
		Fields: req.Sort,
	}).Apply(stmt)
	if stmt.Error != nil {
		return pagination.Page[domain.Machine]{}, stmt.Error
	}
	stmt = option.ApplyPagination(page).Apply(stmt)

	var items []domain.Machine
	if err := stmt.Order("name ASC").Find(&items).Error; err != nil {
		return pagination.Page[domain.Machine]{}, err
	}
	return pagination.NewPage(items, total, page), nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	err := s.machines.Delete(ctx, int64(id))
	if db.IsForeignKeyErr(err) {
		return domain.ErrInUse
	}
	return err
}

func (s *Service) LinkDevice(ctx context.Context, req domain.LinkDeviceRequest) (domain.MachineImpression, error) {
	if req.MachineID == 0 {
		return domain.MachineImpression{}, domain.ErrInvalidID
	}
	device := strings.TrimSpace(req.DeviceNumber)
	if device == "" {
		return domain.MachineImpression{}, domain.ErrInvalidDevice
	}

	bridge := domain.MachineImpression{
		ID:                     s.genID.Generate(),
		MachineID:              req.MachineID,
		ImpressionDeviceNumber: device,
		CreatedAt:              time.Now().UTC(),
	}
	if err := s.bridges.Create(ctx, &bridge); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Linking twice is a no-op; return the existing row.
			existing, findErr := s.bridges.FindOne(ctx, &domain.MachineImpression{
				MachineID:              req.MachineID,
				ImpressionDeviceNumber: device,
			})
			if findErr != nil {
				return domain.MachineImpression{}, findErr
			}
			if existing != nil {
				return *existing, nil
			}
		}
		if db.IsForeignKeyErr(err) {
			return domain.MachineImpression{}, domain.ErrNotFound
		}
		return domain.MachineImpression{}, err
	}
	return bridge, nil
}

func (s *Service) UnlinkDevice(ctx context.Context, req domain.LinkDeviceRequest) error {
	if req.MachineID == 0 {
		return domain.ErrInvalidID
	}
	device := strings.TrimSpace(req.DeviceNumber)
	if device == "" {
		return domain.ErrInvalidDevice
	}
	return s.db.WithContext(ctx).
		Where("machine_id = ? AND impression_device_number = ?", req.MachineID, device).
		Delete(&domain.MachineImpression{}).Error
}

func (s *Service) MachinesByDevice(ctx context.Context, deviceNumber string) ([]domain.Machine, error) {
	device := strings.TrimSpace(deviceNumber)
	if device == "" {
		return nil, domain.ErrInvalidDevice
	}
	var machines []domain.Machine
	err := s.db.WithContext(ctx).
		Model(&domain.Machine{}).
		Joins("JOIN machine_impressions mi ON mi.machine_id = machines.id").
		Where("mi.impression_device_number = ?", device).
		Find(&machines).Error
	return machines, err
}
