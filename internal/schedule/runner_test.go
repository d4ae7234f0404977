package schedule

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendwatch/vendwatch/internal/clock"
	"github.com/vendwatch/vendwatch/internal/config"
	"github.com/vendwatch/vendwatch/internal/export"
	geographydomain "github.com/vendwatch/vendwatch/internal/geography/domain"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	identityservice "github.com/vendwatch/vendwatch/internal/identity/service"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	machinedomain "github.com/vendwatch/vendwatch/internal/machine/domain"
	productdomain "github.com/vendwatch/vendwatch/internal/product/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/impressions"
	"github.com/vendwatch/vendwatch/internal/reporting/sales"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	"github.com/vendwatch/vendwatch/internal/schedule/domain"
	scheduleservice "github.com/vendwatch/vendwatch/internal/schedule/service"
	"github.com/vendwatch/vendwatch/pkg/db"
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

var runnerEpoch = time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)

type captureDeliverer struct {
	err       error
	schedules []domain.ReportSchedule
	files     []*export.File
}

func (d *captureDeliverer) Deliver(_ context.Context, sched domain.ReportSchedule, file *export.File) error {
	if d.err != nil {
		return d.err
	}
	d.schedules = append(d.schedules, sched)
	d.files = append(d.files, file)
	return nil
}

type runnerFixture struct {
	runner    *Runner
	schedules domain.Service
	clk       *clock.FakeClock
	deliverer *captureDeliverer
	admin     identitydomain.User
	scoped    identitydomain.User
}

func newRunnerFixture(t *testing.T) *runnerFixture {
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
		&domain.ReportSchedule{},
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
	require.NoError(t, conn.Create([]machinedomain.MachineImpression{
		{ID: 701, MachineID: machineOne, ImpressionDeviceNumber: "D1"},
	}).Error)
	require.NoError(t, conn.Create([]impressiondomain.Impression{
		{ID: "i-1", DeviceNumber: "D1", Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), TotalImpressions: 100, Seconds: 500, AdvertPlayouts: 50, Type: impressiondomain.TypeImpression, SourceSystemName: "nayax", SourceSystemID: "n-1"},
	}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(runnerEpoch)
	log := zap.NewNop()

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

	schedules := scheduleservice.New(scheduleservice.Params{DB: conn, Log: log, GenID: node, Clock: clk})
	deliverer := &captureDeliverer{}

	runner := NewRunner(RunnerParams{
		Log:    log,
		Config: config.Config{Schedule: config.ScheduleConfig{Enabled: true, Interval: time.Minute, Timeout: time.Minute}},
		Clock:  clk,

		Schedules:   schedules,
		Identity:    identitySvc,
		Sales:       sales.New(sales.Params{DB: conn, Log: log}),
		Impressions: impressions.New(impressions.Params{DB: conn, Log: log}),
		Renderer:    export.New(export.Params{Log: log}),
		Deliverer:   deliverer,
	})

	return &runnerFixture{
		runner:    runner,
		schedules: schedules,
		clk:       clk,
		deliverer: deliverer,
		admin:     admin,
		scoped:    scoped,
	}
}

func (f *runnerFixture) createSchedule(t *testing.T, owner snowflake.ID, kind domain.Kind, format export.Format) domain.ReportSchedule {
	t.Helper()
	sched, err := f.schedules.Create(context.Background(), domain.CreateScheduleRequest{
		OwnerID:    owner,
		Name:       string(kind),
		Kind:       kind,
		Format:     format,
		Recurrence: domain.RecurrenceDaily,
		Recipient:  "ops@example.com",
	})
	require.NoError(t, err)
	return sched
}

func parseCSV(t *testing.T, file *export.File) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunOnceDeliversDueSalesExport(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	sched := f.createSchedule(t, f.admin.ID, domain.KindSalesExport, export.FormatCSV)

	// Nothing is due yet.
	require.NoError(t, f.runner.RunOnce(ctx))
	assert.Empty(t, f.deliverer.files)

	f.clk.Advance(25 * time.Hour)
	require.NoError(t, f.runner.RunOnce(ctx))
	require.Len(t, f.deliverer.files, 1)
	assert.Equal(t, sched.ID, f.deliverer.schedules[0].ID)

	records := parseCSV(t, f.deliverer.files[0])
	require.Len(t, records, 3)
	assert.Equal(t, "sale_date", records[0][0])
	assert.Equal(t, "Cola", records[1][3])

	reloaded, err := f.schedules.GetByID(ctx, sched.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastRunAt)
	assert.True(t, reloaded.NextRunAt.After(f.clk.Now()))

	// The cycle was claimed; running again delivers nothing new.
	require.NoError(t, f.runner.RunOnce(ctx))
	assert.Len(t, f.deliverer.files, 1)
}

func TestRunOnceRunsAsScheduleOwner(t *testing.T) {
	f := newRunnerFixture(t)
	f.createSchedule(t, f.scoped.ID, domain.KindSalesExport, export.FormatCSV)

	f.clk.Advance(25 * time.Hour)
	require.NoError(t, f.runner.RunOnce(context.Background()))
	require.Len(t, f.deliverer.files, 1)

	// The scoped owner only sees the machine it was granted.
	records := parseCSV(t, f.deliverer.files[0])
	require.Len(t, records, 2)
	assert.Equal(t, "s-1", records[1][7])
}

func TestRunOnceRendersImpressionsXLSX(t *testing.T) {
	f := newRunnerFixture(t)
	f.createSchedule(t, f.admin.ID, domain.KindImpressionsExport, export.FormatXLSX)

	f.clk.Advance(25 * time.Hour)
	require.NoError(t, f.runner.RunOnce(context.Background()))
	require.Len(t, f.deliverer.files, 1)

	file := f.deliverer.files[0]
	assert.Contains(t, file.Name, "impressions-")
	assert.Contains(t, file.ContentType, "spreadsheetml")
	assert.NotEmpty(t, file.Data)
}

func TestRunOnceMissingOwnerRescheduledNotRetried(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	orphan, err := f.schedules.Create(ctx, domain.CreateScheduleRequest{
		OwnerID:    999999,
		Name:       "orphan",
		Kind:       domain.KindSalesExport,
		Recurrence: domain.RecurrenceDaily,
		Recipient:  "ops@example.com",
	})
	require.NoError(t, err)

	f.clk.Advance(25 * time.Hour)
	err = f.runner.RunOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, identitydomain.ErrNotFound)
	assert.Empty(t, f.deliverer.files)

	// The claim stands, so the failure waits for the next recurrence.
	reloaded, getErr := f.schedules.GetByID(ctx, orphan.ID)
	require.NoError(t, getErr)
	assert.True(t, reloaded.NextRunAt.After(f.clk.Now()))
}

func TestRunOnceDeliveryFailureSurfacesError(t *testing.T) {
	f := newRunnerFixture(t)
	f.createSchedule(t, f.admin.ID, domain.KindSalesExport, export.FormatCSV)
	f.deliverer.err = errors.New("smtp down")

	f.clk.Advance(25 * time.Hour)
	err := f.runner.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliver")
}
