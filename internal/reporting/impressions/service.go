// Package impressions builds the impression-fact reports. Impression rows
// reach machines only through the device-number bridge, and the general
// "impression" rows share a table with the four proximity-zone rows, so most
// operations pin the type before aggregating.
package impressions

import (
	"context"
	"sort"
	"time"

	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/bucket"
	"github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	"github.com/vendwatch/vendwatch/internal/reporting/query"
	"github.com/vendwatch/vendwatch/internal/reporting/scope"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	"github.com/vendwatch/vendwatch/internal/viewer"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var joinBridge = filter.Join{
	Name:   scope.JoinMachineImpressions,
	Clause: "JOIN machine_impressions ON machine_impressions.impression_device_number = impressions.device_number",
}

// The impression and advert-playout feeds shift to the previous month with
// the same calendar rule today, but they arrive from different upstream
// reports; keep them as two named instances so either can diverge without
// touching the other.
var (
	shiftImpressionsPreviousMonth = filter.ShiftToPreviousMonth
	shiftPlayoutsPreviousMonth    = filter.ShiftToPreviousMonth
)

func filterSpec() filter.Spec {
	return filter.Spec{
		DateColumn:  "impressions.date",
		DateGrained: true,
		Fields: map[string]filter.Field{
			"device_number":      {Column: "impressions.device_number"},
			"type":               {Column: "impressions.type"},
			"source_system_name": {Column: "impressions.source_system_name", CaseInsensitive: true},
			"source_system_id":   {Column: "impressions.source_system_id"},
			"machine_id":         {Column: "machine_impressions.machine_id", Join: &joinBridge},
		},
		SearchColumns: []string{"impressions.device_number", "impressions.source_system_name"},
		SortAllow:     []string{"device_number", "type", "source_system_name"},
	}
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) domain.ImpressionReports {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("reporting.impressions"),
	}
}

// pinType restricts the query to the general impression rows unless the
// caller filtered on type explicitly.
func pinType(st *query.State, in filter.Input) {
	for _, p := range in.Predicates {
		if p.Field == "type" {
			return
		}
	}
	st.Where("impressions.type = ?", impressiondomain.TypeImpression)
}

type factRow struct {
	Day   time.Time
	Value float64
}

func (s *Service) CountPerRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest) ([]domain.RangeRow, error) {
	return s.perRange(ctx, v, req, "SUM(impressions.total_impressions)")
}

func (s *Service) SecondsPerRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest) ([]domain.RangeRow, error) {
	return s.perRange(ctx, v, req, "SUM(impressions.seconds)")
}

func (s *Service) PlayoutsPerRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest) ([]domain.RangeRow, error) {
	return s.perRange(ctx, v, req, "SUM(impressions.advert_playouts)")
}

func (s *Service) perRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest, measure string) ([]domain.RangeRow, error) {
	if _, err := bucket.ParseTimeFrame(string(req.TimeFrame)); err != nil {
		return nil, err
	}
	// Impression facts are date-grained; there is no time-of-day to bucket
	// an hourly series on.
	if req.TimeFrame == bucket.Hour {
		return nil, domain.ErrUnsupportedTimeFrame
	}
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}
	from, hasFrom, to, hasTo := compiled.DateRange()
	if !hasFrom || !hasTo {
		return nil, domain.ErrMissingDateRange
	}
	starts, err := bucket.Sequence(req.TimeFrame, from, to)
	if err != nil {
		return nil, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}))
	scope.Impressions.Apply(st, v, geoIDs)
	compiled.Apply(st)
	pinType(st, remaining)

	var facts []factRow
	err = st.DB().
		Select("impressions.date AS day, " + measure + " AS value").
		Group("impressions.date").
		Scan(&facts).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[time.Time]float64, len(facts))
	for _, f := range facts {
		totals[bucket.Truncate(f.Day, req.TimeFrame)] += f.Value
	}

	out := make([]domain.RangeRow, 0, len(starts))
	for _, start := range starts {
		out = append(out, domain.RangeRow{BucketStart: start, Value: totals[start]})
	}
	return out, nil
}

// PerGeography lists every geography the viewer can see, with zero totals
// for geographies whose devices produced no matching impressions.
func (s *Service) PerGeography(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) ([]domain.GeographyRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	// The geography dimension comes from a deduplicated device-to-geography
	// mapping: a device bridged to several machines of one geography must
	// still attribute each fact to that geography once.
	sub := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}).
		Select("dg.geography_id AS geography_id, SUM(impressions.total_impressions) AS total, AVG(impressions.total_impressions) AS average"))
	scope.Impressions.Apply(sub, v, nil)
	sub.Join("device_geographies",
		"JOIN (SELECT DISTINCT machine_impressions.impression_device_number AS device_number, machines.geography_id AS geography_id"+
			" FROM machine_impressions JOIN machines ON machines.id = machine_impressions.machine_id) AS dg"+
			" ON dg.device_number = impressions.device_number")
	compiled.Apply(sub)
	pinType(sub, remaining)

	outer := s.db.WithContext(ctx).Table("geographies").
		Select("geographies.id AS geography_id, geographies.name AS geography_name, COALESCE(f.total, 0) AS total, COALESCE(f.average, 0) AS average").
		Joins("LEFT JOIN (?) AS f ON f.geography_id = geographies.id", sub.DB().Group("dg.geography_id"))
	if !v.Superuser {
		outer = outer.Where("EXISTS (SELECT 1 FROM machines JOIN machine_users ON machine_users.machine_id = machines.id WHERE machines.geography_id = geographies.id AND machine_users.user_id = ?)", v.UserID)
	}
	if len(geoIDs) > 0 {
		outer = outer.Where("geographies.id IN ?", geoIDs)
	}

	var rows []domain.GeographyRow
	if err := outer.Order("geographies.name").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) PerVenue(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) ([]domain.VenueRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}).
		Select("impressions.source_system_name AS venue, SUM(impressions.total_impressions) AS total, AVG(impressions.total_impressions) AS average"))
	scope.Impressions.Apply(st, v, geoIDs)
	compiled.Apply(st)
	pinType(st, remaining)

	var rows []domain.VenueRow
	err = st.DB().
		Group("impressions.source_system_name").
		Order("impressions.source_system_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PerVenuePerRange groups by bucket and source system. Cells exist only
// where facts matched; an empty (bucket, venue) pair is omitted, since a
// venue is only meaningful on matched rows.
func (s *Service) PerVenuePerRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest) ([]domain.VenueRangeRow, error) {
	if _, err := bucket.ParseTimeFrame(string(req.TimeFrame)); err != nil {
		return nil, err
	}
	if req.TimeFrame == bucket.Hour {
		return nil, domain.ErrUnsupportedTimeFrame
	}
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}))
	scope.Impressions.Apply(st, v, geoIDs)
	compiled.Apply(st)
	pinType(st, remaining)

	type venueFact struct {
		Day   time.Time
		Venue string
		Value float64
	}
	var facts []venueFact
	err = st.DB().
		Select("impressions.date AS day, impressions.source_system_name AS venue, SUM(impressions.total_impressions) AS value").
		Group("impressions.date, impressions.source_system_name").
		Scan(&facts).Error
	if err != nil {
		return nil, err
	}

	type cell struct {
		start time.Time
		venue string
	}
	totals := make(map[cell]float64, len(facts))
	for _, f := range facts {
		totals[cell{bucket.Truncate(f.Day, req.TimeFrame), f.Venue}] += f.Value
	}

	out := make([]domain.VenueRangeRow, 0, len(totals))
	for c, value := range totals {
		out = append(out, domain.VenueRangeRow{BucketStart: c.start, Venue: c.venue, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BucketStart.Equal(out[j].BucketStart) {
			return out[i].BucketStart.Before(out[j].BucketStart)
		}
		return out[i].Venue < out[j].Venue
	})
	return out, nil
}

func (s *Service) PerZone(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) ([]domain.ZoneRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	zones := []impressiondomain.Type{
		impressiondomain.TypeZoneImmediate,
		impressiondomain.TypeZoneNear,
		impressiondomain.TypeZoneMid,
		impressiondomain.TypeZoneFar,
	}

	st := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}).
		Select("impressions.type AS zone, SUM(impressions.total_impressions) AS total, AVG(impressions.total_impressions) AS average"))
	scope.Impressions.Apply(st, v, geoIDs)
	compiled.Apply(st)
	st.Where("impressions.type IN ?", zones)

	var rows []domain.ZoneRow
	err = st.DB().
		Group("impressions.type").
		Order("impressions.type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) AverageWithTrend(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) (*domain.TrendRow, error) {
	return s.trend(ctx, v, req.Filter, "impressions.total_impressions", shiftImpressionsPreviousMonth)
}

func (s *Service) PlayoutsAverageWithTrend(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) (*domain.TrendRow, error) {
	return s.trend(ctx, v, req.Filter, "impressions.advert_playouts", shiftPlayoutsPreviousMonth)
}

func (s *Service) trend(ctx context.Context, v viewer.Viewer, in filter.Input, column string, shift func(filter.Input) filter.Input) (*domain.TrendRow, error) {
	current, err := s.totals(ctx, v, in, column)
	if err != nil {
		return nil, err
	}
	previous, err := s.totals(ctx, v, shift(in), column)
	if err != nil {
		return nil, err
	}
	return &domain.TrendRow{
		Total:           current.Total,
		Average:         current.Average,
		PreviousTotal:   previous.Total,
		PreviousAverage: previous.Average,
	}, nil
}

type totalsRow struct {
	Total   float64
	Average float64
}

func (s *Service) totals(ctx context.Context, v viewer.Viewer, in filter.Input, column string) (totalsRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(in)
	if err != nil {
		return totalsRow{}, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return totalsRow{}, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}).
		Select("COALESCE(SUM(" + column + "), 0) AS total, COALESCE(AVG(" + column + "), 0) AS average"))
	scope.Impressions.Apply(st, v, geoIDs)
	compiled.Apply(st)
	pinType(st, remaining)

	var row totalsRow
	if err := st.DB().Scan(&row).Error; err != nil {
		return totalsRow{}, err
	}
	return row, nil
}

// Composite lines impressions, sales and playouts up per bucket. The two
// fact families are aggregated by separate queries and merged onto one
// generated bucket sequence, so a bucket with facts on one side only keeps a
// zero on the other side.
func (s *Service) Composite(ctx context.Context, v viewer.Viewer, req domain.RangeRequest) ([]domain.CompositeRow, error) {
	if _, err := bucket.ParseTimeFrame(string(req.TimeFrame)); err != nil {
		return nil, err
	}
	if req.TimeFrame == bucket.Hour {
		return nil, domain.ErrUnsupportedTimeFrame
	}
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}
	from, hasFrom, to, hasTo := compiled.DateRange()
	if !hasFrom || !hasTo {
		return nil, domain.ErrMissingDateRange
	}
	starts, err := bucket.Sequence(req.TimeFrame, from, to)
	if err != nil {
		return nil, err
	}

	type impressionFact struct {
		Day      time.Time
		Value    float64
		Playouts float64
	}
	ist := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}))
	scope.Impressions.Apply(ist, v, geoIDs)
	compiled.Apply(ist)
	pinType(ist, remaining)
	var impressionFacts []impressionFact
	err = ist.DB().
		Select("impressions.date AS day, SUM(impressions.total_impressions) AS value, SUM(impressions.advert_playouts) AS playouts").
		Group("impressions.date").
		Scan(&impressionFacts).Error
	if err != nil {
		return nil, err
	}

	sst := query.New(s.db.WithContext(ctx).Model(&saledomain.Sale{}))
	scope.Sales.Apply(sst, v, geoIDs)
	// Sale dates are stored at midnight, so the lower bound is floored the
	// same way the date-grained impression side floors it; an intraday
	// date_from must not exclude the whole day's sales.
	saleFrom := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	sst.Where("sales.sale_date >= ?", saleFrom)
	sst.Where("sales.sale_date <= ?", to)
	var saleFacts []factRow
	err = sst.DB().
		Select("sales.sale_date AS day, SUM(sales.quantity) AS value").
		Group("sales.sale_date").
		Scan(&saleFacts).Error
	if err != nil {
		return nil, err
	}

	cells := make(map[time.Time]*domain.CompositeRow, len(starts))
	ordered := make([]domain.CompositeRow, len(starts))
	for i, start := range starts {
		ordered[i] = domain.CompositeRow{BucketStart: start}
		cells[start] = &ordered[i]
	}
	for _, f := range impressionFacts {
		if row, ok := cells[bucket.Truncate(f.Day, req.TimeFrame)]; ok {
			row.Impressions += f.Value
			row.AdvertPlayouts += f.Playouts
		}
	}
	for _, f := range saleFacts {
		if row, ok := cells[bucket.Truncate(f.Day, req.TimeFrame)]; ok {
			row.Sales += f.Value
		}
	}
	return ordered, nil
}

// Export selects denormalized display columns. Devices not bridged to a
// machine keep empty machine and geography labels, which is why the display
// joins are LEFT JOINs; viewer scoping arrives as EXISTS conditions, so it
// restricts rows without touching these joins.
func (s *Service) Export(ctx context.Context, v viewer.Viewer, req domain.ExportRequest) (*domain.Export[domain.ImpressionExportRow], error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&impressiondomain.Impression{}).
		Select("impressions.date AS date, impressions.device_number AS device_number, impressions.type AS type, " +
			"impressions.total_impressions AS total_impressions, impressions.seconds AS seconds, impressions.advert_playouts AS advert_playouts, " +
			"COALESCE(NULLIF(machines.display_name, ''), machines.name, '') AS machine_name, " +
			"COALESCE(geographies.name, '') AS geography_name, " +
			"impressions.source_system_name AS source_system_name"))
	scope.Impressions.Apply(st, v, geoIDs)
	st.Join(scope.JoinMachineImpressions, "LEFT JOIN machine_impressions ON machine_impressions.impression_device_number = impressions.device_number")
	st.Join(scope.JoinMachines, "LEFT JOIN machines ON machines.id = machine_impressions.machine_id")
	st.Join(scope.JoinGeographies, "LEFT JOIN geographies ON geographies.id = machines.geography_id")
	compiled.Apply(st)

	base := st.DB().Session(&gorm.Session{})

	if req.RawResult {
		var rows []domain.ImpressionExportRow
		q := compiled.ApplySort(base).Order("impressions.date, impressions.device_number, impressions.type")
		if err := q.Scan(&rows).Error; err != nil {
			return nil, err
		}
		return &domain.Export[domain.ImpressionExportRow]{Rows: rows}, nil
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}
	var rows []domain.ImpressionExportRow
	q := compiled.ApplySort(base).Order("impressions.date, impressions.device_number, impressions.type").
		Offset(req.Pagination.Offset()).
		Limit(req.Pagination.Limit())
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	page := pagination.NewPage(rows, total, req.Pagination)
	return &domain.Export[domain.ImpressionExportRow]{Page: &page}, nil
}
