package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

type CreateGeographyRequest struct {
	Name          string
	Postcode      string
	MapLocationID string
}

type UpdateGeographyRequest struct {
	ID            snowflake.ID
	Name          string
	Postcode      *string
	MapLocationID *string
}

type ListGeographyRequest struct {
	pagination.Pagination
	Search string
	Sort   []string
}

type Service interface {
	Create(ctx context.Context, req CreateGeographyRequest) (Geography, error)
	Update(ctx context.Context, req UpdateGeographyRequest) (Geography, error)
	GetByID(ctx context.Context, id snowflake.ID) (Geography, error)
	List(ctx context.Context, req ListGeographyRequest) (pagination.Page[Geography], error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNameTaken   = errors.New("name_taken")
	ErrNotFound    = errors.New("not_found")
	ErrInUse       = errors.New("geography_in_use")
)
