package filter

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendwatch/vendwatch/internal/reporting/query"
	"github.com/vendwatch/vendwatch/pkg/db"
	"gorm.io/gorm"
)

type item struct {
	ID     int64 `gorm:"primaryKey"`
	Name   string
	Status string
	MadeAt time.Time
}

func testSpec() Spec {
	return Spec{
		DateColumn: "made_at",
		Fields: map[string]Field{
			"name":   {Column: "name", CaseInsensitive: true},
			"status": {Column: "status"},
		},
		SearchColumns: []string{"name", "status"},
		SortAllow:     []string{"name", "status"},
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&item{}))

	rows := []item{
		{ID: 1, Name: "Espresso", Status: "active", MadeAt: time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)},
		{ID: 2, Name: "Latte", Status: "active", MadeAt: time.Date(2024, time.March, 2, 23, 30, 0, 0, time.UTC)},
		{ID: 3, Name: "Cortado", Status: "retired", MadeAt: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, conn.Create(&rows).Error)
	return conn
}

func names(t *testing.T, st *query.State) []string {
	t.Helper()
	var out []string
	require.NoError(t, st.DB().Order("id").Pluck("name", &out).Error)
	return out
}

func TestCompileRejectsInvertedDateRange(t *testing.T) {
	from := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	_, err := testSpec().Compile(Input{DateFrom: &from, DateTo: &to})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestCompileNormalizesBareDateToEndOfDay(t *testing.T) {
	to := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	compiled, err := testSpec().Compile(Input{DateTo: &to})
	require.NoError(t, err)

	_, _, normalized, hasTo := compiled.DateRange()
	require.True(t, hasTo)
	assert.Equal(t, time.Date(2024, time.March, 2, 23, 59, 59, 0, time.UTC), normalized)

	// A 23:30 fact on the bare end date must be included.
	st := query.New(testDB(t).Model(&item{}))
	compiled.Apply(st)
	assert.Equal(t, []string{"Espresso", "Latte"}, names(t, st))
}

func TestCompileKeepsExplicitTimeOfDay(t *testing.T) {
	to := time.Date(2024, time.March, 2, 12, 0, 0, 0, time.UTC)
	compiled, err := testSpec().Compile(Input{DateTo: &to})
	require.NoError(t, err)

	st := query.New(testDB(t).Model(&item{}))
	compiled.Apply(st)
	assert.Equal(t, []string{"Espresso"}, names(t, st))
}

func TestCompileRejectsUnknownField(t *testing.T) {
	_, err := testSpec().Compile(Input{
		Predicates: []Predicate{{Field: "flavour", Op: OpEq, Value: "strong"}},
	})
	assert.ErrorIs(t, err, ErrUnknownFilterField)
}

func TestEqualityOnCaseInsensitiveFieldMatchesPartials(t *testing.T) {
	compiled, err := testSpec().Compile(Input{
		Predicates: []Predicate{{Field: "name", Op: OpEq, Value: "ESPRES"}},
	})
	require.NoError(t, err)

	st := query.New(testDB(t).Model(&item{}))
	compiled.Apply(st)
	assert.Equal(t, []string{"Espresso"}, names(t, st))
}

func TestInPredicate(t *testing.T) {
	compiled, err := testSpec().Compile(Input{
		Predicates: []Predicate{{Field: "status", Op: OpIn, Value: []string{"retired"}}},
	})
	require.NoError(t, err)

	st := query.New(testDB(t).Model(&item{}))
	compiled.Apply(st)
	assert.Equal(t, []string{"Cortado"}, names(t, st))
}

func TestSearchFansOutAcrossColumns(t *testing.T) {
	compiled, err := testSpec().Compile(Input{Search: "RETIRED"})
	require.NoError(t, err)

	st := query.New(testDB(t).Model(&item{}))
	compiled.Apply(st)
	assert.Equal(t, []string{"Cortado"}, names(t, st))
}

func TestSortAllowListEnforced(t *testing.T) {
	_, err := testSpec().Compile(Input{Sort: []string{"made_at"}})
	assert.ErrorIs(t, err, ErrSortNotAllowed)

	compiled, err := testSpec().Compile(Input{Sort: []string{"-name"}})
	require.NoError(t, err)

	conn := testDB(t)
	var out []string
	require.NoError(t, compiled.ApplySort(conn.Model(&item{})).Pluck("name", &out).Error)
	assert.Equal(t, []string{"Latte", "Espresso", "Cortado"}, out)
}

func TestSortDenyListEnforced(t *testing.T) {
	spec := testSpec()
	spec.SortAllow = nil
	spec.SortDeny = []string{"status"}

	_, err := spec.Compile(Input{Sort: []string{"status"}})
	assert.ErrorIs(t, err, ErrSortNotAllowed)

	_, err = spec.Compile(Input{Sort: []string{"name"}})
	assert.NoError(t, err)
}

func TestBothSortListsIsConfigError(t *testing.T) {
	spec := testSpec()
	spec.SortDeny = []string{"status"}
	_, err := spec.Compile(Input{})
	assert.ErrorIs(t, err, ErrSortListConflict)
}

func TestExtractGeographyConsumesAndClears(t *testing.T) {
	in := Input{
		Predicates: []Predicate{
			{Field: GeographyField, Op: OpIn, Value: []snowflake.ID{5, 9}},
			{Field: "status", Op: OpEq, Value: "active"},
		},
	}

	ids, remaining, err := ExtractGeography(in)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{5, 9}, ids)
	require.Len(t, remaining.Predicates, 1)
	assert.Equal(t, "status", remaining.Predicates[0].Field)

	// Caller's input is untouched.
	assert.Len(t, in.Predicates, 2)
}

func TestExtractGeographySingleValue(t *testing.T) {
	in := Input{Predicates: []Predicate{{Field: GeographyField, Op: OpEq, Value: snowflake.ID(7)}}}
	ids, remaining, err := ExtractGeography(in)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{7}, ids)
	assert.Empty(t, remaining.Predicates)
}

func TestExtractGeographyParsesJSONStringIDs(t *testing.T) {
	in := Input{Predicates: []Predicate{{Field: GeographyField, Op: OpIn, Value: []any{"5", "9"}}}}
	ids, _, err := ExtractGeography(in)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{5, 9}, ids)
}

func TestExtractGeographyRejectsMalformedID(t *testing.T) {
	// A stored schedule filter with a corrupted id must fail, not silently
	// widen the query to every geography.
	in := Input{Predicates: []Predicate{{Field: GeographyField, Op: OpIn, Value: []any{"5", "not-an-id"}}}}
	_, _, err := ExtractGeography(in)
	assert.ErrorIs(t, err, ErrInvalidFilterValue)

	in = Input{Predicates: []Predicate{{Field: GeographyField, Op: OpEq, Value: true}}}
	_, _, err = ExtractGeography(in)
	assert.ErrorIs(t, err, ErrInvalidFilterValue)
}

func TestShiftToPreviousMonthPreservesOtherFields(t *testing.T) {
	from := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)
	in := Input{
		DateFrom:   &from,
		DateTo:     &to,
		Predicates: []Predicate{{Field: "status", Op: OpEq, Value: "active"}},
	}

	shifted := ShiftToPreviousMonth(in)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), *shifted.DateFrom)
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC), *shifted.DateTo)
	assert.Len(t, shifted.Predicates, 1)

	// Original bounds are untouched.
	assert.Equal(t, from, *in.DateFrom)
	assert.Equal(t, to, *in.DateTo)
}
