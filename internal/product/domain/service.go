package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

type CreateCategoryRequest struct {
	Name string
}

type CreateProductRequest struct {
	Name       string
	PriceCents int64
	CategoryID snowflake.ID
}

type UpdateProductRequest struct {
	ID         snowflake.ID
	Name       string
	PriceCents *int64
	CategoryID snowflake.ID
}

type ListProductRequest struct {
	pagination.Pagination
	Search      string
	CategoryIDs []snowflake.ID
	Sort        []string
}

type Service interface {
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (ProductCategory, error)
	ListCategories(ctx context.Context) ([]ProductCategory, error)
	Create(ctx context.Context, req CreateProductRequest) (Product, error)
	Update(ctx context.Context, req UpdateProductRequest) (Product, error)
	GetByID(ctx context.Context, id snowflake.ID) (Product, error)
	List(ctx context.Context, req ListProductRequest) (pagination.Page[Product], error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNameTaken       = errors.New("name_taken")
	ErrNotFound        = errors.New("not_found")
	ErrInUse           = errors.New("product_in_use")
)
