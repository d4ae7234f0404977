// Package sales builds the sale-fact reports. Every operation runs the same
// pipeline: extract the geography predicate, compile the remaining filter,
// apply viewer scope, then aggregate by the report dimension. Time-bucketed
// reports merge their aggregates onto a generated calendar sequence so empty
// periods surface as zero rows.
package sales

import (
	"context"
	"math"
	"strconv"
	"time"

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

const machineNameExpr = "COALESCE(NULLIF(machines.display_name, ''), machines.name)"

var (
	joinMachines = filter.Join{Name: scope.JoinMachines, Clause: "JOIN machines ON machines.id = sales.machine_id"}
	joinProducts = filter.Join{Name: "products", Clause: "JOIN products ON products.id = sales.product_id"}
)

func filterSpec() filter.Spec {
	return filter.Spec{
		DateColumn:  "sales.sale_date",
		DateGrained: true,
		Fields: map[string]filter.Field{
			"machine_id":       {Column: "sales.machine_id"},
			"product_id":       {Column: "sales.product_id"},
			"quantity":         {Column: "sales.quantity"},
			"source_system_id": {Column: "sales.source_system_id"},
			"machine_name":     {Column: machineNameExpr, CaseInsensitive: true, Join: &joinMachines},
			"product_name":     {Column: "products.name", CaseInsensitive: true, Join: &joinProducts},
			"category_id":      {Column: "products.category_id", Join: &joinProducts},
		},
		SearchColumns: []string{"sales.source_system_id"},
		SortAllow:     []string{"quantity", "source_system_id", "machine_name", "product_name"},
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

func New(p Params) domain.SalesReports {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("reporting.sales"),
	}
}

// factRow is one grouped aggregate before bucket alignment. The hour part is
// carried as text because the sale time-of-day column is text.
type factRow struct {
	Day      time.Time
	HourPart string
	Value    float64
}

func (s *Service) CountPerRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest) ([]domain.RangeRow, error) {
	return s.perRange(ctx, v, req, "SUM(sales.quantity)", nil)
}

func (s *Service) RevenuePerRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest) ([]domain.RevenueRangeRow, error) {
	rows, err := s.perRange(ctx, v, req, "SUM(sales.quantity * products.price_cents)", func(st *query.State) {
		st.Join(joinProducts.Name, joinProducts.Clause)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.RevenueRangeRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.RevenueRangeRow{BucketStart: r.BucketStart, Cents: int64(math.Round(r.Value))})
	}
	return out, nil
}

func (s *Service) perRange(ctx context.Context, v viewer.Viewer, req domain.RangeRequest, measure string, extend func(*query.State)) ([]domain.RangeRow, error) {
	if _, err := bucket.ParseTimeFrame(string(req.TimeFrame)); err != nil {
		return nil, err
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

	st := query.New(s.db.WithContext(ctx).Model(&saledomain.Sale{}))
	scope.Sales.Apply(st, v, geoIDs)
	if extend != nil {
		extend(st)
	}
	compiled.Apply(st)

	q := st.DB()
	if req.TimeFrame == bucket.Hour {
		q = q.Select("sales.sale_date AS day, SUBSTR(sales.sale_time, 1, 2) AS hour_part, " + measure + " AS value").
			Group("sales.sale_date, SUBSTR(sales.sale_time, 1, 2)")
	} else {
		q = q.Select("sales.sale_date AS day, " + measure + " AS value").
			Group("sales.sale_date")
	}

	var facts []factRow
	if err := q.Scan(&facts).Error; err != nil {
		return nil, err
	}

	totals := make(map[time.Time]float64, len(facts))
	for _, f := range facts {
		at := f.Day.UTC()
		if req.TimeFrame == bucket.Hour {
			hour, err := strconv.Atoi(f.HourPart)
			if err != nil {
				continue
			}
			at = at.Add(time.Duration(hour) * time.Hour)
		}
		totals[bucket.Truncate(at, req.TimeFrame)] += f.Value
	}

	out := make([]domain.RangeRow, 0, len(starts))
	for _, start := range starts {
		out = append(out, domain.RangeRow{BucketStart: start, Value: totals[start]})
	}
	return out, nil
}

// CountPerGeography lists every geography the viewer can see, left-joined
// against the filtered aggregate so geographies without matching sales keep
// zero totals. The geography predicate restricts the listing itself here,
// since geography is the report dimension.
func (s *Service) CountPerGeography(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) ([]domain.GeographyRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	sub := query.New(s.db.WithContext(ctx).Model(&saledomain.Sale{}).
		Select("machines.geography_id AS geography_id, SUM(sales.quantity) AS total, AVG(sales.quantity) AS average"))
	scope.Sales.Apply(sub, v, nil)
	sub.Join(scope.JoinMachines, joinMachines.Clause)
	compiled.Apply(sub)

	outer := s.db.WithContext(ctx).Table("geographies").
		Select("geographies.id AS geography_id, geographies.name AS geography_name, COALESCE(f.total, 0) AS total, COALESCE(f.average, 0) AS average").
		Joins("LEFT JOIN (?) AS f ON f.geography_id = geographies.id", sub.DB().Group("machines.geography_id"))
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

// CountPerCategory groups by product category. The category totals expose
// product identity, so the viewer's product grants intersect here on top of
// the machine scope.
func (s *Service) CountPerCategory(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) ([]domain.CategoryRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&saledomain.Sale{}).
		Select("product_categories.id AS category_id, product_categories.name AS category_name, SUM(sales.quantity) AS total"))
	scope.Sales.Apply(st, v, geoIDs)
	scope.Sales.ApplyProducts(st, v)
	st.Join(joinProducts.Name, joinProducts.Clause)
	st.Join("product_categories", "JOIN product_categories ON product_categories.id = products.category_id")
	compiled.Apply(st)

	var rows []domain.CategoryRow
	err = st.DB().
		Group("product_categories.id, product_categories.name").
		Order("product_categories.name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) CountPerMachine(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) ([]domain.MachineRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&saledomain.Sale{}).
		Select("machines.id AS machine_id, " + machineNameExpr + " AS machine_name, SUM(sales.quantity) AS total"))
	scope.Sales.Apply(st, v, geoIDs)
	st.Join(scope.JoinMachines, joinMachines.Clause)
	compiled.Apply(st)

	var rows []domain.MachineRow
	err = st.DB().
		Group("machines.id, machines.display_name, machines.name").
		Order("machine_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AverageWithTrend runs the same aggregate twice: once for the requested
// period and once for the calendar month before it. The shifted filter is a
// copy; the caller's filter is never touched.
func (s *Service) AverageWithTrend(ctx context.Context, v viewer.Viewer, req domain.FilterRequest) (*domain.TrendRow, error) {
	current, err := s.totals(ctx, v, req.Filter)
	if err != nil {
		return nil, err
	}
	previous, err := s.totals(ctx, v, filter.ShiftToPreviousMonth(req.Filter))
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

func (s *Service) totals(ctx context.Context, v viewer.Viewer, in filter.Input) (totalsRow, error) {
	geoIDs, remaining, err := filter.ExtractGeography(in)
	if err != nil {
		return totalsRow{}, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return totalsRow{}, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&saledomain.Sale{}).
		Select("COALESCE(SUM(sales.quantity), 0) AS total, COALESCE(AVG(sales.quantity), 0) AS average"))
	scope.Sales.Apply(st, v, geoIDs)
	compiled.Apply(st)

	var row totalsRow
	if err := st.DB().Scan(&row).Error; err != nil {
		return totalsRow{}, err
	}
	return row, nil
}

// Export selects denormalized display columns through the same scope and
// filter pipeline as every listing. Rows name the product sold, so the
// viewer's product grants intersect here too. The raw_result flag only
// changes how the rows are fetched, never how the query is built.
func (s *Service) Export(ctx context.Context, v viewer.Viewer, req domain.ExportRequest) (*domain.Export[domain.SaleExportRow], error) {
	geoIDs, remaining, err := filter.ExtractGeography(req.Filter)
	if err != nil {
		return nil, err
	}
	compiled, err := filterSpec().Compile(remaining)
	if err != nil {
		return nil, err
	}

	st := query.New(s.db.WithContext(ctx).Model(&saledomain.Sale{}).
		Select("sales.sale_date AS sale_date, sales.sale_time AS sale_time, sales.quantity AS quantity, " +
			"products.name AS product_name, product_categories.name AS category_name, " +
			machineNameExpr + " AS machine_name, geographies.name AS geography_name, " +
			"sales.source_system_id AS source_system_id"))
	scope.Sales.Apply(st, v, geoIDs)
	scope.Sales.ApplyProducts(st, v)
	st.Join(scope.JoinMachines, joinMachines.Clause)
	st.Join(scope.JoinGeographies, "JOIN geographies ON geographies.id = machines.geography_id")
	st.Join(joinProducts.Name, joinProducts.Clause)
	st.Join("product_categories", "JOIN product_categories ON product_categories.id = products.category_id")
	compiled.Apply(st)

	base := st.DB().Session(&gorm.Session{})

	if req.RawResult {
		var rows []domain.SaleExportRow
		q := compiled.ApplySort(base).Order("sales.sale_date, sales.sale_time")
		if err := q.Scan(&rows).Error; err != nil {
			return nil, err
		}
		return &domain.Export[domain.SaleExportRow]{Rows: rows}, nil
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}
	var rows []domain.SaleExportRow
	q := compiled.ApplySort(base).Order("sales.sale_date, sales.sale_time").
		Offset(req.Pagination.Offset()).
		Limit(req.Pagination.Limit())
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	page := pagination.NewPage(rows, total, req.Pagination)
	return &domain.Export[domain.SaleExportRow]{Page: &page}, nil
}
