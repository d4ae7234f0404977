package server

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendwatch/vendwatch/internal/cache"
	"github.com/vendwatch/vendwatch/internal/clock"
	"github.com/vendwatch/vendwatch/internal/config"
	"github.com/vendwatch/vendwatch/internal/export"
	geographydomain "github.com/vendwatch/vendwatch/internal/geography/domain"
	geographyservice "github.com/vendwatch/vendwatch/internal/geography/service"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	identityservice "github.com/vendwatch/vendwatch/internal/identity/service"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	impressionservice "github.com/vendwatch/vendwatch/internal/impression/service"
	machinedomain "github.com/vendwatch/vendwatch/internal/machine/domain"
	machineservice "github.com/vendwatch/vendwatch/internal/machine/service"
	obsmetrics "github.com/vendwatch/vendwatch/internal/observability/metrics"
	productdomain "github.com/vendwatch/vendwatch/internal/product/domain"
	productservice "github.com/vendwatch/vendwatch/internal/product/service"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/impressions"
	"github.com/vendwatch/vendwatch/internal/reporting/sales"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	saleservice "github.com/vendwatch/vendwatch/internal/sale/service"
	scheduledomain "github.com/vendwatch/vendwatch/internal/schedule/domain"
	scheduleservice "github.com/vendwatch/vendwatch/internal/schedule/service"
	"github.com/vendwatch/vendwatch/pkg/db"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

const (
	geoNorth   snowflake.ID = 101
	geoSouth   snowflake.ID = 102
	catDrinks  snowflake.ID = 111
	prodCola   snowflake.ID = 121
	machineOne snowflake.ID = 201
	machineTwo snowflake.ID = 202
)

type serverFixture struct {
	server *Server
	admin  identitydomain.User
	scoped identitydomain.User
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	ctx := context.Background()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&geographydomain.Geography{},
		&machinedomain.Machine{},
		&machinedomain.MachineImpression{},
		&identitydomain.User{},
		&identitydomain.MachineUser{},
		&identitydomain.ProductUser{},
		&productdomain.ProductCategory{},
		&productdomain.Product{},
		&saledomain.Sale{},
		&impressiondomain.Impression{},
		&scheduledomain.ReportSchedule{},
	))

	require.NoError(t, conn.Create([]geographydomain.Geography{
		{ID: geoNorth, Name: "North"},
		{ID: geoSouth, Name: "South"},
	}).Error)
	require.NoError(t, conn.Create([]machinedomain.Machine{
		{ID: machineOne, Name: "M1", GeographyID: geoNorth},
		{ID: machineTwo, Name: "M2", GeographyID: geoSouth},
	}).Error)
	require.NoError(t, conn.Create([]productdomain.ProductCategory{
		{ID: catDrinks, Name: "Drinks"},
	}).Error)
	require.NoError(t, conn.Create([]productdomain.Product{
		{ID: prodCola, Name: "Cola", PriceCents: 250, CategoryID: catDrinks},
	}).Error)
	require.NoError(t, conn.Create([]saledomain.Sale{
		{ID: 601, SaleDate: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), SaleTime: "09:15:00", Quantity: 2, SourceSystemID: "s-1", ProductID: prodCola, MachineID: machineOne},
		{ID: 602, SaleDate: time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC), SaleTime: "10:30:00", Quantity: 3, SourceSystemID: "s-2", ProductID: prodCola, MachineID: machineTwo},
	}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC))

	identitySvc := identityservice.New(identityservice.Params{DB: conn, Log: log, GenID: node})
	admin, err := identitySvc.Create(ctx, identitydomain.CreateUserRequest{
		Email:       "admin@example.com",
		FullName:    "Admin",
		Role:        identitydomain.RoleAdmin,
		Permissions: []string{identitydomain.PermissionAny},
	})
	require.NoError(t, err)
	scoped, err := identitySvc.Create(ctx, identitydomain.CreateUserRequest{
		Email:    "scoped@example.com",
		FullName: "Scoped",
	})
	require.NoError(t, err)
	require.NoError(t, identitySvc.GrantMachine(ctx, identitydomain.GrantRequest{UserID: scoped.ID, TargetID: machineOne}))

	provider := noop.NewMeterProvider()
	metricsCfg := obsmetrics.Config{ServiceName: "vendwatch-test"}
	metrics, err := obsmetrics.New(metricsCfg, provider)
	require.NoError(t, err)
	httpMetrics, err := obsmetrics.NewHTTPMetrics(metricsCfg, provider)
	require.NoError(t, err)

	cfg := config.Config{Environment: "test", HTTPAddr: ":0"}
	engine := NewEngine(cfg, log, httpMetrics)
	resolver := cache.NewIngestResolverCache()

	srv := NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		IdentitySvc:   identitySvc,
		GeographySvc:  geographyservice.New(geographyservice.Params{DB: conn, Log: log, GenID: node}),
		MachineSvc:    machineservice.New(machineservice.Params{DB: conn, Log: log, GenID: node}),
		ProductSvc:    productservice.New(productservice.Params{DB: conn, Log: log, GenID: node}),
		SaleSvc:       saleservice.New(saleservice.Params{DB: conn, Log: log, GenID: node, ResolverCache: resolver}),
		ImpressionSvc: impressionservice.New(impressionservice.Params{DB: conn, Log: log}),
		SalesReports:  sales.New(sales.Params{DB: conn, Log: log}),
		ImpReports:    impressions.New(impressions.Params{DB: conn, Log: log}),
		ScheduleSvc:   scheduleservice.New(scheduleservice.Params{DB: conn, Log: log, GenID: node, Clock: clk}),
		Renderer:      export.New(export.Params{Log: log}),
		Metrics:       metrics,
	})

	return &serverFixture{server: srv, admin: admin, scoped: scoped}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, as snowflake.ID) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != 0 {
		req.Header.Set("X-User-Id", as.String())
	}

	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil, 0)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestViewerRequired(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/geographies", nil, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/geographies", nil, snowflake.ID(999999))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReferenceWritesRequireSuperuser(t *testing.T) {
	f := newServerFixture(t)
	body := map[string]any{"name": "East"}

	rec := f.do(t, http.MethodPost, "/api/geographies", body, f.scoped.ID)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/geographies", body, f.admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decodeData[geographydomain.Geography](t, rec)
	assert.Equal(t, "East", created.Name)

	// Reads stay open to every authenticated viewer.
	rec = f.do(t, http.MethodGet, "/api/geographies", nil, f.scoped.ID)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateMachineValidationPayload(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/machines", map[string]any{"name": "M3"}, f.admin.ID)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error struct {
			Type   string `json:"type"`
			Errors []struct {
				Code string `json:"code"`
			} `json:"errors"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error.Type)
	require.NotEmpty(t, resp.Error.Errors)
	assert.Equal(t, "invalid_geography", resp.Error.Errors[0].Code)
}

func TestSalesCountPerRangeScopedByViewer(t *testing.T) {
	f := newServerFixture(t)
	path := "/api/reports/sales/count-per-range?time_frame=month&date_from=2024-03-01&date_to=2024-03-31"

	rec := f.do(t, http.MethodGet, path, nil, f.admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decodeData[[]reportingdomain.RangeRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(5), rows[0].Value)

	rec = f.do(t, http.MethodGet, path, nil, f.scoped.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	rows = decodeData[[]reportingdomain.RangeRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(2), rows[0].Value)
}

func TestRangeReportRejectsUnknownFilterField(t *testing.T) {
	f := newServerFixture(t)

	// "type" is an impression field; the sales family does not declare it.
	rec := f.do(t, http.MethodGet, "/api/reports/sales/count-per-range?time_frame=day&date_from=2024-03-01&date_to=2024-03-31&type=impression", nil, f.admin.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestNayaxSaleIdempotent(t *testing.T) {
	f := newServerFixture(t)
	body := map[string]any{
		"transaction_id": "tx-100",
		"machine_id":     machineOne.String(),
		"product_id":     prodCola.String(),
		"sale_date":      "2024-03-12",
		"sale_time":      "11:00:00",
		"quantity":       1,
	}

	rec := f.do(t, http.MethodPost, "/api/ingest/nayax/sales", body, 0)
	require.Equal(t, http.StatusOK, rec.Code)

	// A vendor retry replays the transaction id and gets the accepted fact
	// back unchanged.
	body["quantity"] = 4
	rec = f.do(t, http.MethodPost, "/api/ingest/nayax/sales", body, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	sale := decodeData[saledomain.Sale](t, rec)
	assert.Equal(t, int64(1), sale.Quantity)

	body["machine_id"] = "999999"
	body["transaction_id"] = "tx-101"
	rec = f.do(t, http.MethodPost, "/api/ingest/nayax/sales", body, 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestDataJamImpressionDefaults(t *testing.T) {
	f := newServerFixture(t)
	body := map[string]any{
		"source_system_id":  "imp-1",
		"device_number":     "D1",
		"date":              "2024-03-12",
		"total_impressions": 42.5,
		"seconds":           120,
		"advert_playouts":   7,
	}

	rec := f.do(t, http.MethodPost, "/api/ingest/datajam/impressions", body, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	imp := decodeData[impressiondomain.Impression](t, rec)
	assert.Equal(t, "datajam", imp.SourceSystemName)
	assert.Equal(t, impressiondomain.TypeImpression, imp.Type)
}

func TestDownloadSalesExportCSV(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/exports/sales?format=csv&date_from=2024-03-01&date_to=2024-03-31", nil, f.admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "sale_date", records[0][0])
}

func TestDownloadExportRejectsUnknownFormat(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/exports/sales?format=pdf", nil, f.admin.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleOwnership(t *testing.T) {
	f := newServerFixture(t)
	body := map[string]any{
		"name":       "weekly sales",
		"kind":       "sales_export",
		"format":     "csv",
		"recurrence": "weekly",
		"recipient":  "ops@example.com",
	}

	rec := f.do(t, http.MethodPost, "/api/schedules", body, f.scoped.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decodeData[scheduledomain.ReportSchedule](t, rec)
	assert.Equal(t, f.scoped.ID, created.OwnerID)

	// The owner reads it back; the superuser sees it too.
	path := fmt.Sprintf("/api/schedules/%s", created.ID)
	rec = f.do(t, http.MethodGet, path, nil, f.scoped.ID)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, path, nil, f.admin.ID)
	assert.Equal(t, http.StatusOK, rec.Code)

	adminRec := f.do(t, http.MethodPost, "/api/schedules", body, f.admin.ID)
	require.Equal(t, http.StatusOK, adminRec.Code)
	adminSched := decodeData[scheduledomain.ReportSchedule](t, adminRec)

	// A foreign schedule reads as not found.
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/schedules/%s", adminSched.ID), nil, f.scoped.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/schedules", nil, f.scoped.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), adminSched.ID.String()))
}

func TestGrantEndpoints(t *testing.T) {
	f := newServerFixture(t)

	path := fmt.Sprintf("/api/users/%s/machine-grants/%s", f.scoped.ID, machineTwo)
	rec := f.do(t, http.MethodPost, path, nil, f.admin.ID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/users/%s/machine-grants", f.scoped.ID), nil, f.admin.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	grants := decodeData[[]snowflake.ID](t, rec)
	assert.Len(t, grants, 2)

	rec = f.do(t, http.MethodDelete, path, nil, f.admin.ID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Grant management is superuser-only.
	rec = f.do(t, http.MethodPost, path, nil, f.scoped.ID)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
