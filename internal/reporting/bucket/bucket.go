// Package bucket generates contiguous calendar bucket sequences for
// time-series reports. Sequences depend only on the requested range, never
// on stored data: a period with no facts still gets a bucket.
package bucket

import (
	"errors"
	"strings"
	"time"
)

// TimeFrame is a calendar granularity.
type TimeFrame string

const (
	Hour    TimeFrame = "hour"
	Day     TimeFrame = "day"
	Week    TimeFrame = "week"
	Month   TimeFrame = "month"
	Quarter TimeFrame = "quarter"
	Year    TimeFrame = "year"
)

// ErrInvalidTimeFrame is returned for an unknown granularity.
var ErrInvalidTimeFrame = errors.New("invalid_time_frame")

// ParseTimeFrame parses a granularity string.
func ParseTimeFrame(value string) (TimeFrame, error) {
	switch TimeFrame(strings.ToLower(strings.TrimSpace(value))) {
	case Hour:
		return Hour, nil
	case Day:
		return Day, nil
	case Week:
		return Week, nil
	case Month:
		return Month, nil
	case Quarter:
		return Quarter, nil
	case Year:
		return Year, nil
	default:
		return "", ErrInvalidTimeFrame
	}
}

// Truncate aligns t to the start of its bucket. Weeks start on Monday;
// a quarter starts on the first day of its 3-month block.
func Truncate(t time.Time, frame TimeFrame) time.Time {
	t = t.UTC()
	switch frame {
	case Hour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case Day:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Week:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Quarter:
		month := time.Month(((int(t.Month())-1)/3)*3 + 1)
		return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Next returns the start of the bucket following start. The quarter step is
// a fixed 3-month advance.
func Next(start time.Time, frame TimeFrame) time.Time {
	switch frame {
	case Hour:
		return start.Add(time.Hour)
	case Day:
		return start.AddDate(0, 0, 1)
	case Week:
		return start.AddDate(0, 0, 7)
	case Month:
		return start.AddDate(0, 1, 0)
	case Quarter:
		return start.AddDate(0, 3, 0)
	case Year:
		return start.AddDate(1, 0, 0)
	default:
		return start
	}
}

// Sequence generates every bucket start from the truncated from up to and
// including the bucket containing to. The result is contiguous and gapless.
func Sequence(frame TimeFrame, from, to time.Time) ([]time.Time, error) {
	if _, err := ParseTimeFrame(string(frame)); err != nil {
		return nil, err
	}
	from = from.UTC()
	to = to.UTC()
	if from.After(to) {
		return nil, nil
	}

	var starts []time.Time
	for cursor := Truncate(from, frame); !cursor.After(to); cursor = Next(cursor, frame) {
		starts = append(starts, cursor)
	}
	return starts, nil
}

// PreviousCalendarMonth shifts a range to the calendar month immediately
// before from: the first instant of that month through its final second.
// February in a leap year yields Feb 1 .. Feb 29 23:59:59.
func PreviousCalendarMonth(from, to time.Time) (time.Time, time.Time) {
	_ = to
	monthStart := time.Date(from.UTC().Year(), from.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	prevStart := monthStart.AddDate(0, -1, 0)
	prevEnd := monthStart.Add(-time.Second)
	return prevStart, prevEnd
}
