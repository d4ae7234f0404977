package bucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseTimeFrame(t *testing.T) {
	for _, value := range []string{"hour", "day", "week", "month", "quarter", "year", " Month "} {
		_, err := ParseTimeFrame(value)
		assert.NoError(t, err, value)
	}
	_, err := ParseTimeFrame("decade")
	assert.ErrorIs(t, err, ErrInvalidTimeFrame)
}

func TestSequenceMonthIsGapless(t *testing.T) {
	starts, err := Sequence(Month, date(2024, time.January, 1), date(2024, time.March, 31))
	require.NoError(t, err)
	require.Len(t, starts, 3)
	assert.Equal(t, date(2024, time.January, 1), starts[0])
	assert.Equal(t, date(2024, time.February, 1), starts[1])
	assert.Equal(t, date(2024, time.March, 1), starts[2])
}

func TestSequenceQuarterStepsThreeMonths(t *testing.T) {
	starts, err := Sequence(Quarter, date(2024, time.February, 15), date(2024, time.November, 1))
	require.NoError(t, err)
	require.Len(t, starts, 4)
	assert.Equal(t, date(2024, time.January, 1), starts[0])
	assert.Equal(t, date(2024, time.April, 1), starts[1])
	assert.Equal(t, date(2024, time.July, 1), starts[2])
	assert.Equal(t, date(2024, time.October, 1), starts[3])
}

func TestSequenceWeekStartsMonday(t *testing.T) {
	// 2024-01-03 is a Wednesday.
	starts, err := Sequence(Week, date(2024, time.January, 3), date(2024, time.January, 15))
	require.NoError(t, err)
	require.Len(t, starts, 3)
	assert.Equal(t, date(2024, time.January, 1), starts[0])
	assert.Equal(t, date(2024, time.January, 8), starts[1])
	assert.Equal(t, date(2024, time.January, 15), starts[2])
	for _, s := range starts {
		assert.Equal(t, time.Monday, s.Weekday())
	}
}

func TestSequenceHour(t *testing.T) {
	from := time.Date(2024, time.June, 1, 9, 30, 0, 0, time.UTC)
	to := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	starts, err := Sequence(Hour, from, to)
	require.NoError(t, err)
	require.Len(t, starts, 4)
	assert.Equal(t, 9, starts[0].Hour())
	assert.Equal(t, 12, starts[3].Hour())
}

func TestSequenceEmptyWhenFromAfterTo(t *testing.T) {
	starts, err := Sequence(Day, date(2024, time.March, 2), date(2024, time.March, 1))
	require.NoError(t, err)
	assert.Empty(t, starts)
}

func TestSequenceSingleBucket(t *testing.T) {
	starts, err := Sequence(Year, date(2024, time.July, 9), date(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, starts, 1)
	assert.Equal(t, date(2024, time.January, 1), starts[0])
}

func TestTruncateQuarter(t *testing.T) {
	assert.Equal(t, date(2024, time.October, 1), Truncate(date(2024, time.December, 31), Quarter))
	assert.Equal(t, date(2024, time.January, 1), Truncate(date(2024, time.March, 31), Quarter))
}

func TestPreviousCalendarMonthLeapYear(t *testing.T) {
	from, to := PreviousCalendarMonth(date(2024, time.March, 1), date(2024, time.March, 31))
	assert.Equal(t, date(2024, time.February, 1), from)
	assert.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC), to)
}

func TestPreviousCalendarMonthAcrossYear(t *testing.T) {
	from, to := PreviousCalendarMonth(date(2024, time.January, 15), date(2024, time.January, 31))
	assert.Equal(t, date(2023, time.December, 1), from)
	assert.Equal(t, time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC), to)
}
