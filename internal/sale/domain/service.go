package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type IngestSaleRequest struct {
	SourceSystemID string
	MachineID      snowflake.ID
	ProductID      snowflake.ID
	SaleDate       time.Time
	SaleTime       string
	Quantity       int64
	Raw            map[string]any
}

// Service ingests sale facts idempotently.
type Service interface {
	Ingest(ctx context.Context, req IngestSaleRequest) (*Sale, error)
}

var (
	ErrInvalidSourceID = errors.New("invalid_source_system_id")
	ErrInvalidMachine  = errors.New("invalid_machine")
	ErrInvalidProduct  = errors.New("invalid_product")
	ErrInvalidDate     = errors.New("invalid_sale_date")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)
