package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/export"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

type CreateScheduleRequest struct {
	OwnerID    snowflake.ID
	Name       string
	Kind       Kind
	Format     export.Format
	Recurrence Recurrence
	Filter     filter.Input
	Recipient  string
}

type UpdateScheduleRequest struct {
	ID         snowflake.ID
	Name       *string
	Format     *export.Format
	Recurrence *Recurrence
	Filter     *filter.Input
	Recipient  *string
	Active     *bool
}

type ListSchedulesRequest struct {
	// OwnerID restricts the listing; zero lists every schedule.
	OwnerID snowflake.ID
	pagination.Pagination
}

// Service manages report schedules and hands due work to the runner.
type Service interface {
	Create(ctx context.Context, req CreateScheduleRequest) (ReportSchedule, error)
	GetByID(ctx context.Context, id snowflake.ID) (ReportSchedule, error)
	List(ctx context.Context, req ListSchedulesRequest) (pagination.Page[ReportSchedule], error)
	Update(ctx context.Context, req UpdateScheduleRequest) (ReportSchedule, error)
	Delete(ctx context.Context, id snowflake.ID) error

	// Due returns active schedules whose next run is at or before now.
	Due(ctx context.Context, now time.Time, limit int) ([]ReportSchedule, error)
	// Claim advances the schedule's next run past now. False without error
	// means another worker claimed this cycle first.
	Claim(ctx context.Context, sched ReportSchedule, now time.Time) (bool, error)
}
