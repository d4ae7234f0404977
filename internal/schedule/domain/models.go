// Package domain contains the recurring report schedule model.
package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/export"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	"gorm.io/datatypes"
)

// Kind selects which export a schedule produces.
type Kind string

const (
	KindSalesExport       Kind = "sales_export"
	KindImpressionsExport Kind = "impressions_export"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSalesExport, KindImpressionsExport:
		return true
	default:
		return false
	}
}

// Recurrence is the calendar step between runs.
type Recurrence string

const (
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// Next returns the run following from. Monthly steps follow AddDate
// semantics, so Jan 31 + 1 month normalizes into March.
func (r Recurrence) Next(from time.Time) time.Time {
	from = from.UTC()
	switch r {
	case RecurrenceDaily:
		return from.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return from.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from
	}
}

// ReportSchedule is a recurring export owned by a user. The stored filter is
// the same document the interactive export endpoints accept; runs execute it
// as the owner, so the owner's grants keep scoping the rows.
type ReportSchedule struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	OwnerID    snowflake.ID   `gorm:"not null;index" json:"owner_id"`
	Name       string         `gorm:"not null" json:"name"`
	Kind       Kind           `gorm:"type:text;not null" json:"kind"`
	Format     export.Format  `gorm:"type:text;not null" json:"format"`
	Recurrence Recurrence     `gorm:"type:text;not null" json:"recurrence"`
	Filter     datatypes.JSON `gorm:"not null;default:'{}'" json:"filter"`
	Recipient  string         `gorm:"not null" json:"recipient"`
	Active     bool           `gorm:"not null;default:true" json:"active"`
	NextRunAt  time.Time      `gorm:"not null;index" json:"next_run_at"`
	LastRunAt  *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (ReportSchedule) TableName() string { return "report_schedules" }

// FilterInput decodes the stored filter document.
func (s ReportSchedule) FilterInput() (filter.Input, error) {
	var in filter.Input
	if len(s.Filter) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(s.Filter, &in); err != nil {
		return filter.Input{}, ErrInvalidFilter
	}
	return in, nil
}

var (
	ErrInvalidOwner      = errors.New("invalid_owner")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidKind       = errors.New("invalid_schedule_kind")
	ErrInvalidRecurrence = errors.New("invalid_recurrence")
	ErrInvalidRecipient  = errors.New("invalid_recipient")
	ErrInvalidFilter     = errors.New("invalid_schedule_filter")
	ErrNotFound          = errors.New("not_found")
)
