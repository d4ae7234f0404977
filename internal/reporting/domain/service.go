package domain

import (
	"context"

	"github.com/vendwatch/vendwatch/internal/viewer"
)

// SalesReports is the sale-fact aggregation manager.
type SalesReports interface {
	// CountPerRange sums sold quantity per time bucket, gap-filled.
	CountPerRange(ctx context.Context, v viewer.Viewer, req RangeRequest) ([]RangeRow, error)
	// RevenuePerRange sums quantity times product price per bucket,
	// gap-filled, in cents.
	RevenuePerRange(ctx context.Context, v viewer.Viewer, req RangeRequest) ([]RevenueRangeRow, error)
	// CountPerGeography sums and averages sold quantity per geography.
	// Every geography the viewer can see appears.
	CountPerGeography(ctx context.Context, v viewer.Viewer, req FilterRequest) ([]GeographyRow, error)
	// CountPerCategory sums sold quantity per product category.
	CountPerCategory(ctx context.Context, v viewer.Viewer, req FilterRequest) ([]CategoryRow, error)
	// CountPerMachine sums sold quantity per machine.
	CountPerMachine(ctx context.Context, v viewer.Viewer, req FilterRequest) ([]MachineRow, error)
	// AverageWithTrend aggregates the current period and the preceding
	// calendar month together.
	AverageWithTrend(ctx context.Context, v viewer.Viewer, req FilterRequest) (*TrendRow, error)
	// Export returns denormalized sale rows, raw or paginated.
	Export(ctx context.Context, v viewer.Viewer, req ExportRequest) (*Export[SaleExportRow], error)
}

// ImpressionReports is the impression-fact aggregation manager.
type ImpressionReports interface {
	// CountPerRange sums total impressions per time bucket, gap-filled.
	CountPerRange(ctx context.Context, v viewer.Viewer, req RangeRequest) ([]RangeRow, error)
	// SecondsPerRange sums watched seconds per bucket, gap-filled.
	SecondsPerRange(ctx context.Context, v viewer.Viewer, req RangeRequest) ([]RangeRow, error)
	// PlayoutsPerRange sums advert playouts per bucket, gap-filled.
	PlayoutsPerRange(ctx context.Context, v viewer.Viewer, req RangeRequest) ([]RangeRow, error)
	// PerGeography sums and averages impressions per geography. Every
	// geography the viewer can see appears.
	PerGeography(ctx context.Context, v viewer.Viewer, req FilterRequest) ([]GeographyRow, error)
	// PerVenue sums and averages impressions per source system.
	PerVenue(ctx context.Context, v viewer.Viewer, req FilterRequest) ([]VenueRow, error)
	// PerVenuePerRange groups impressions by bucket and source system.
	// Cells with no facts are omitted rather than zero-filled.
	PerVenuePerRange(ctx context.Context, v viewer.Viewer, req RangeRequest) ([]VenueRangeRow, error)
	// PerZone aggregates the four proximity zones.
	PerZone(ctx context.Context, v viewer.Viewer, req FilterRequest) ([]ZoneRow, error)
	// AverageWithTrend compares current-period impressions with the
	// preceding calendar month.
	AverageWithTrend(ctx context.Context, v viewer.Viewer, req FilterRequest) (*TrendRow, error)
	// PlayoutsAverageWithTrend is the advert-playouts counterpart of
	// AverageWithTrend.
	PlayoutsAverageWithTrend(ctx context.Context, v viewer.Viewer, req FilterRequest) (*TrendRow, error)
	// Composite lines impressions, sales and playouts up per bucket.
	Composite(ctx context.Context, v viewer.Viewer, req RangeRequest) ([]CompositeRow, error)
	// Export returns denormalized impression rows, raw or paginated.
	Export(ctx context.Context, v viewer.Viewer, req ExportRequest) (*Export[ImpressionExportRow], error)
}
