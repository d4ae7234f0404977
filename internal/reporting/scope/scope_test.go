package scope

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	geographydomain "github.com/vendwatch/vendwatch/internal/geography/domain"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	machinedomain "github.com/vendwatch/vendwatch/internal/machine/domain"
	"github.com/vendwatch/vendwatch/internal/reporting/query"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	"github.com/vendwatch/vendwatch/internal/viewer"
	"github.com/vendwatch/vendwatch/pkg/db"
	"gorm.io/gorm"
)

const (
	geoOne     snowflake.ID = 101
	geoTwo     snowflake.ID = 102
	machineOne snowflake.ID = 201
	machineTwo snowflake.ID = 202
	userScoped snowflake.ID = 301
	userNone   snowflake.ID = 302
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&geographydomain.Geography{},
		&machinedomain.Machine{},
		&machinedomain.MachineImpression{},
		&identitydomain.MachineUser{},
		&identitydomain.ProductUser{},
		&saledomain.Sale{},
		&impressiondomain.Impression{},
	))

	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, conn.Create([]geographydomain.Geography{
		{ID: geoOne, Name: "North"},
		{ID: geoTwo, Name: "South"},
	}).Error)
	require.NoError(t, conn.Create([]machinedomain.Machine{
		{ID: machineOne, Name: "M1", GeographyID: geoOne},
		{ID: machineTwo, Name: "M2", GeographyID: geoTwo},
	}).Error)
	require.NoError(t, conn.Create([]machinedomain.MachineImpression{
		{ID: 401, MachineID: machineOne, ImpressionDeviceNumber: "D1"},
		{ID: 402, MachineID: machineTwo, ImpressionDeviceNumber: "D2"},
	}).Error)
	require.NoError(t, conn.Create([]identitydomain.MachineUser{
		{ID: 501, UserID: userScoped, MachineID: machineOne},
	}).Error)
	require.NoError(t, conn.Create([]saledomain.Sale{
		{ID: 601, SaleDate: day, SaleTime: "10:00:00", Quantity: 1, SourceSystemID: "s-1", ProductID: 1, MachineID: machineOne},
		{ID: 602, SaleDate: day, SaleTime: "11:00:00", Quantity: 1, SourceSystemID: "s-2", ProductID: 1, MachineID: machineTwo},
	}).Error)
	require.NoError(t, conn.Create([]impressiondomain.Impression{
		{ID: "nayax:i-1:impression", DeviceNumber: "D1", Date: day, TotalImpressions: 10, Type: impressiondomain.TypeImpression, SourceSystemName: "nayax", SourceSystemID: "i-1"},
		{ID: "nayax:i-2:impression", DeviceNumber: "D2", Date: day, TotalImpressions: 20, Type: impressiondomain.TypeImpression, SourceSystemName: "nayax", SourceSystemID: "i-2"},
	}).Error)
	return conn
}

func saleIDs(t *testing.T, st *query.State) []int64 {
	t.Helper()
	var ids []int64
	require.NoError(t, st.DB().Order("sales.id").Pluck("sales.id", &ids).Error)
	return ids
}

func TestSuperuserQueryUnmodified(t *testing.T) {
	conn := testDB(t)
	st := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(st, viewer.Viewer{UserID: 999, Superuser: true}, nil)
	assert.Equal(t, []int64{601, 602}, saleIDs(t, st))
	assert.False(t, st.Joined(JoinMachines))
}

func TestScopedUserSeesGrantedMachinesOnly(t *testing.T) {
	conn := testDB(t)
	st := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(st, viewer.Viewer{UserID: userScoped}, nil)
	assert.Equal(t, []int64{601}, saleIDs(t, st))
}

func TestZeroGrantsIsEmptyNotError(t *testing.T) {
	conn := testDB(t)
	st := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(st, viewer.Viewer{UserID: userNone}, nil)
	assert.Empty(t, saleIDs(t, st))
}

func TestGeographyFilterWithOverlappingGrantsNoDuplicates(t *testing.T) {
	conn := testDB(t)
	st := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(st, viewer.Viewer{UserID: userScoped}, []snowflake.ID{geoOne})
	// Grant scope and geography filter both reach machines; the row must
	// appear exactly once.
	assert.Equal(t, []int64{601}, saleIDs(t, st))
}

func TestGeographyFilterOnSuperuser(t *testing.T) {
	conn := testDB(t)
	st := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(st, viewer.Viewer{UserID: 999, Superuser: true}, []snowflake.ID{geoTwo})
	assert.Equal(t, []int64{602}, saleIDs(t, st))
}

func TestImpressionsScopedThroughDeviceBridge(t *testing.T) {
	conn := testDB(t)
	st := query.New(conn.Model(&impressiondomain.Impression{}))
	Impressions.Apply(st, viewer.Viewer{UserID: userScoped}, nil)

	var ids []string
	require.NoError(t, st.DB().Pluck("impressions.id", &ids).Error)
	assert.Equal(t, []string{"nayax:i-1:impression"}, ids)
}

func TestImpressionsGeographyFilter(t *testing.T) {
	conn := testDB(t)
	st := query.New(conn.Model(&impressiondomain.Impression{}))
	Impressions.Apply(st, viewer.Viewer{UserID: 999, Superuser: true}, []snowflake.ID{geoTwo})

	var ids []string
	require.NoError(t, st.DB().Pluck("impressions.id", &ids).Error)
	assert.Equal(t, []string{"nayax:i-2:impression"}, ids)
}

// bridgeDeviceToSecondMachine maps D1 onto a second machine in geoOne, so
// the device reaches two machines at once.
func bridgeDeviceToSecondMachine(t *testing.T, conn *gorm.DB, grantTo snowflake.ID) {
	t.Helper()
	require.NoError(t, conn.Create(&machinedomain.Machine{ID: 203, Name: "M3", GeographyID: geoOne}).Error)
	require.NoError(t, conn.Create(&machinedomain.MachineImpression{ID: 403, MachineID: 203, ImpressionDeviceNumber: "D1"}).Error)
	if grantTo != 0 {
		require.NoError(t, conn.Create(&identitydomain.MachineUser{ID: 502, UserID: grantTo, MachineID: 203}).Error)
	}
}

func TestImpressionsDeviceBridgedToTwoGrantedMachinesCountsOnce(t *testing.T) {
	conn := testDB(t)
	bridgeDeviceToSecondMachine(t, conn, userScoped)

	st := query.New(conn.Model(&impressiondomain.Impression{}))
	Impressions.Apply(st, viewer.Viewer{UserID: userScoped}, nil)

	var ids []string
	require.NoError(t, st.DB().Pluck("impressions.id", &ids).Error)
	assert.Equal(t, []string{"nayax:i-1:impression"}, ids)
}

func TestImpressionsGeographyFilterSharedDeviceNoDuplicates(t *testing.T) {
	conn := testDB(t)
	bridgeDeviceToSecondMachine(t, conn, 0)

	st := query.New(conn.Model(&impressiondomain.Impression{}))
	Impressions.Apply(st, viewer.Viewer{UserID: 999, Superuser: true}, []snowflake.ID{geoOne})

	var ids []string
	require.NoError(t, st.DB().Pluck("impressions.id", &ids).Error)
	assert.Equal(t, []string{"nayax:i-1:impression"}, ids)
}

func TestSalesApplyProductsIntersectsGrants(t *testing.T) {
	conn := testDB(t)
	require.NoError(t, conn.Create(&identitydomain.ProductUser{ID: 551, UserID: userScoped, ProductID: 1}).Error)

	st := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(st, viewer.Viewer{UserID: userScoped}, nil)
	Sales.ApplyProducts(st, viewer.Viewer{UserID: userScoped})
	assert.Equal(t, []int64{601}, saleIDs(t, st))

	// No product grants at all: nothing product-scoped is visible.
	other := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(other, viewer.Viewer{UserID: userNone}, nil)
	Sales.ApplyProducts(other, viewer.Viewer{UserID: userNone})
	assert.Empty(t, saleIDs(t, other))
}

func TestApplyProductsIsNoopForSuperuserAndImpressions(t *testing.T) {
	conn := testDB(t)

	st := query.New(conn.Model(&saledomain.Sale{}))
	Sales.Apply(st, viewer.Viewer{UserID: 999, Superuser: true}, nil)
	Sales.ApplyProducts(st, viewer.Viewer{UserID: 999, Superuser: true})
	assert.Equal(t, []int64{601, 602}, saleIDs(t, st))

	// Impressions have no product linkage; the viewer's machine grants alone
	// decide visibility.
	ist := query.New(conn.Model(&impressiondomain.Impression{}))
	Impressions.Apply(ist, viewer.Viewer{UserID: userScoped}, nil)
	Impressions.ApplyProducts(ist, viewer.Viewer{UserID: userScoped})
	var ids []string
	require.NoError(t, ist.DB().Pluck("impressions.id", &ids).Error)
	assert.Equal(t, []string{"nayax:i-1:impression"}, ids)
}
