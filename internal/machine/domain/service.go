package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

type CreateMachineRequest struct {
	Name        string
	DisplayName string
	GeographyID snowflake.ID
}

type UpdateMachineRequest struct {
	ID          snowflake.ID
	Name        string
	DisplayName *string
	GeographyID snowflake.ID
}

type ListMachineRequest struct {
	pagination.Pagination
	Search       string
	GeographyIDs []snowflake.ID
	Sort         []string
}

type LinkDeviceRequest struct {
	MachineID    snowflake.ID
	DeviceNumber string
}

type Service interface {
	Create(ctx context.Context, req CreateMachineRequest) (Machine, error)
	Update(ctx context.Context, req UpdateMachineRequest) (Machine, error)
	GetByID(ctx context.Context, id snowflake.ID) (Machine, error)
	List(ctx context.Context, req ListMachineRequest) (pagination.Page[Machine], error)
	Delete(ctx context.Context, id snowflake.ID) error

	LinkDevice(ctx context.Context, req LinkDeviceRequest) (MachineImpression, error)
	UnlinkDevice(ctx context.Context, req LinkDeviceRequest) error
	MachinesByDevice(ctx context.Context, deviceNumber string) ([]Machine, error)
}

var (
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidGeography = errors.New("invalid_geography")
	ErrInvalidDevice    = errors.New("invalid_device_number")
	ErrNotFound         = errors.New("not_found")
	ErrInUse            = errors.New("machine_in_use")
)
