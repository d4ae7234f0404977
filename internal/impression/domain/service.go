package domain

import (
	"context"
	"errors"
	"time"
)

type IngestImpressionRequest struct {
	SourceSystemName string
	SourceSystemID   string
	DeviceNumber     string
	Date             time.Time
	TotalImpressions float64
	Seconds          int64
	AdvertPlayouts   int64
	Type             Type
	Raw              map[string]any
}

// Service ingests impression facts idempotently.
type Service interface {
	Ingest(ctx context.Context, req IngestImpressionRequest) (*Impression, error)
}

var (
	ErrInvalidSource = errors.New("invalid_source_system")
	ErrInvalidDevice = errors.New("invalid_device_number")
	ErrInvalidDate   = errors.New("invalid_date")
	ErrInvalidType   = errors.New("invalid_type")
	ErrInvalidValue  = errors.New("invalid_value")
)
