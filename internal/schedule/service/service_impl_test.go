package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendwatch/vendwatch/internal/clock"
	"github.com/vendwatch/vendwatch/internal/export"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	"github.com/vendwatch/vendwatch/internal/schedule/domain"
	"github.com/vendwatch/vendwatch/pkg/db"
	"go.uber.org/zap"
)

const ownerID snowflake.ID = 301

var startOfApril = time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC)

func testService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.ReportSchedule{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(startOfApril)
	return New(Params{DB: conn, Log: zap.NewNop(), GenID: node, Clock: clk}), clk
}

func createRequest() domain.CreateScheduleRequest {
	return domain.CreateScheduleRequest{
		OwnerID:    ownerID,
		Name:       "daily sales",
		Kind:       domain.KindSalesExport,
		Recurrence: domain.RecurrenceDaily,
		Recipient:  "ops@example.com",
	}
}

func TestCreateSetsFirstRunAndDefaults(t *testing.T) {
	svc, _ := testService(t)
	sched, err := svc.Create(context.Background(), createRequest())
	require.NoError(t, err)

	assert.True(t, sched.Active)
	assert.Equal(t, export.FormatCSV, sched.Format)
	assert.Equal(t, startOfApril.AddDate(0, 0, 1), sched.NextRunAt)
	assert.Nil(t, sched.LastRunAt)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	req := createRequest()
	req.OwnerID = 0
	_, err := svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)

	req = createRequest()
	req.Name = "  "
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	req = createRequest()
	req.Kind = "weekly_digest"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	req = createRequest()
	req.Format = "pdf"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, export.ErrInvalidFormat)

	req = createRequest()
	req.Recurrence = "hourly"
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)

	req = createRequest()
	req.Recipient = ""
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}

func TestStoredFilterRoundTrips(t *testing.T) {
	svc, _ := testService(t)
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	req := createRequest()
	req.Filter = filter.Input{
		DateFrom: &from,
		DateTo:   &to,
		Predicates: []filter.Predicate{
			{Field: filter.GeographyField, Op: filter.OpIn, Value: []snowflake.ID{101, 102}},
		},
	}
	created, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	loaded, err := svc.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	in, err := loaded.FilterInput()
	require.NoError(t, err)
	require.NotNil(t, in.DateFrom)
	assert.True(t, in.DateFrom.Equal(from))

	// Snowflake ids marshal as JSON strings; extraction must still work.
	ids, remaining, err := filter.ExtractGeography(in)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{101, 102}, ids)
	assert.Empty(t, remaining.Predicates)
}

func TestUpdatePatchesFields(t *testing.T) {
	svc, _ := testService(t)
	created, err := svc.Create(context.Background(), createRequest())
	require.NoError(t, err)

	monthly := domain.RecurrenceMonthly
	xlsx := export.FormatXLSX
	inactive := false
	updated, err := svc.Update(context.Background(), domain.UpdateScheduleRequest{
		ID:         created.ID,
		Recurrence: &monthly,
		Format:     &xlsx,
		Active:     &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RecurrenceMonthly, updated.Recurrence)
	assert.Equal(t, export.FormatXLSX, updated.Format)
	assert.False(t, updated.Active)
	// Untouched fields survive the patch.
	assert.Equal(t, created.Name, updated.Name)
	assert.True(t, updated.NextRunAt.Equal(created.NextRunAt))
}

func TestUpdateUnknownID(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.Update(context.Background(), domain.UpdateScheduleRequest{ID: 9999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteUnknownID(t *testing.T) {
	svc, _ := testService(t)
	created, err := svc.Create(context.Background(), createRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), created.ID), domain.ErrNotFound)
}

func TestListFiltersByOwner(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	other := createRequest()
	other.OwnerID = 302
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	page, err := svc.List(ctx, domain.ListSchedulesRequest{OwnerID: ownerID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Total)

	all, err := svc.List(ctx, domain.ListSchedulesRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
}

func TestDueAndClaim(t *testing.T) {
	svc, clk := testService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	due, err := svc.Due(ctx, clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	clk.Advance(25 * time.Hour)
	due, err = svc.Due(ctx, clk.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	claimed, err := svc.Claim(ctx, due[0], clk.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	// A second worker holding the same snapshot loses the race.
	claimed, err = svc.Claim(ctx, due[0], clk.Now())
	require.NoError(t, err)
	assert.False(t, claimed)

	reloaded, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.NextRunAt.Equal(clk.Now().AddDate(0, 0, 1)))
	require.NotNil(t, reloaded.LastRunAt)
	assert.True(t, reloaded.LastRunAt.Equal(clk.Now()))

	due, err = svc.Due(ctx, clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestClaimSkipsInactive(t *testing.T) {
	svc, clk := testService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, domain.UpdateScheduleRequest{ID: created.ID, Active: &inactive})
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	due, err := svc.Due(ctx, clk.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	claimed, err := svc.Claim(ctx, created, clk.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
}
