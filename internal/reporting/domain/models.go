// Package domain contains the report row shapes and the contracts of the two
// aggregation managers.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/bucket"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

var (
	// ErrMissingDateRange is returned by time-bucketed reports when the
	// filter carries no complete date range; bucket generation needs both
	// bounds.
	ErrMissingDateRange = errors.New("missing_date_range")
	// ErrUnsupportedTimeFrame is returned when a report family cannot
	// serve the requested granularity; impression facts carry a date, so
	// hourly bucketing has nothing to group on.
	ErrUnsupportedTimeFrame = errors.New("unsupported_time_frame")
)

// RangeRequest asks for a gap-filled time series.
type RangeRequest struct {
	TimeFrame bucket.TimeFrame
	Filter    filter.Input
}

// FilterRequest asks for a non-bucketed report.
type FilterRequest struct {
	Filter filter.Input
}

// ExportRequest asks for denormalized export rows. RawResult selects the
// full file-ready row set; otherwise a paginated preview is returned. Both
// modes run the same query.
type ExportRequest struct {
	Filter     filter.Input
	RawResult  bool
	Pagination pagination.Pagination
}

// RangeRow is one bucket of a gap-filled series. Buckets with no facts are
// present with a zero value.
type RangeRow struct {
	BucketStart time.Time `json:"bucket_start"`
	Value       float64   `json:"value"`
}

// RevenueRangeRow is one bucket of a gap-filled revenue series, in cents.
type RevenueRangeRow struct {
	BucketStart time.Time `json:"bucket_start"`
	Cents       int64     `json:"cents"`
}

// GeographyRow aggregates one geography. Every geography the viewer can see
// appears, with zero totals when no facts match.
type GeographyRow struct {
	GeographyID   snowflake.ID `json:"geography_id"`
	GeographyName string       `json:"geography_name"`
	Total         float64      `json:"total"`
	Average       float64      `json:"average"`
}

// CategoryRow aggregates one product category.
type CategoryRow struct {
	CategoryID   snowflake.ID `json:"category_id"`
	CategoryName string       `json:"category_name"`
	Total        float64      `json:"total"`
}

// MachineRow aggregates one machine under its effective name.
type MachineRow struct {
	MachineID   snowflake.ID `json:"machine_id"`
	MachineName string       `json:"machine_name"`
	Total       float64      `json:"total"`
}

// VenueRow aggregates one source system.
type VenueRow struct {
	Venue   string  `json:"venue"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
}

// VenueRangeRow is one (bucket, venue) cell. Buckets with no matched facts
// carry no venue and are omitted.
type VenueRangeRow struct {
	BucketStart time.Time `json:"bucket_start"`
	Venue       string    `json:"venue"`
	Value       float64   `json:"value"`
}

// ZoneRow aggregates one proximity zone.
type ZoneRow struct {
	Zone    impressiondomain.Type `json:"zone"`
	Total   float64               `json:"total"`
	Average float64               `json:"average"`
}

// TrendRow pairs the current period with the immediately preceding calendar
// month so callers can compute percentage change.
type TrendRow struct {
	Total           float64 `json:"total"`
	Average         float64 `json:"average"`
	PreviousTotal   float64 `json:"previous_total"`
	PreviousAverage float64 `json:"previous_average"`
}

// CompositeRow lines impressions, sales and advert playouts up per bucket.
// A bucket with facts on one side only shows zero for the other side.
type CompositeRow struct {
	BucketStart    time.Time `json:"bucket_start"`
	Impressions    float64   `json:"impressions"`
	Sales          float64   `json:"sales"`
	AdvertPlayouts float64   `json:"advert_playouts"`
}

// SaleExportRow is a denormalized sale line with display labels in place of
// foreign keys.
type SaleExportRow struct {
	SaleDate       time.Time `json:"sale_date"`
	SaleTime       string    `json:"sale_time"`
	Quantity       int64     `json:"quantity"`
	ProductName    string    `json:"product_name"`
	CategoryName   string    `json:"category_name"`
	MachineName    string    `json:"machine_name"`
	GeographyName  string    `json:"geography_name"`
	SourceSystemID string    `json:"source_system_id"`
}

// ImpressionExportRow is a denormalized impression line. Machine and
// geography labels are empty when the device is not bridged to a machine.
type ImpressionExportRow struct {
	Date             time.Time             `json:"date"`
	DeviceNumber     string                `json:"device_number"`
	Type             impressiondomain.Type `json:"type"`
	TotalImpressions float64               `json:"total_impressions"`
	Seconds          int64                 `json:"seconds"`
	AdvertPlayouts   int64                 `json:"advert_playouts"`
	MachineName      string                `json:"machine_name"`
	GeographyName    string                `json:"geography_name"`
	SourceSystemName string                `json:"source_system_name"`
}

// Export carries either the raw file-ready rows or a paginated preview.
type Export[T any] struct {
	Rows []T                 `json:"rows,omitempty"`
	Page *pagination.Page[T] `json:"page,omitempty"`
}
