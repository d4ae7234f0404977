// Package schedule executes recurring report exports. A clock-driven runner
// claims due schedules, renders the export as the schedule owner and hands
// the file to a Deliverer.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vendwatch/vendwatch/internal/clock"
	"github.com/vendwatch/vendwatch/internal/config"
	"github.com/vendwatch/vendwatch/internal/export"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/schedule/domain"
	"github.com/vendwatch/vendwatch/internal/viewer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const claimBatchSize = 50

type RunnerParams struct {
	fx.In

	Log         *zap.Logger
	Config      config.Config
	Clock       clock.Clock
	Schedules   domain.Service
	Identity    identitydomain.Service
	Sales       reportingdomain.SalesReports
	Impressions reportingdomain.ImpressionReports
	Renderer    *export.Renderer
	Deliverer   Deliverer
}

type Runner struct {
	log         *zap.Logger
	cfg         config.ScheduleConfig
	clock       clock.Clock
	schedules   domain.Service
	identity    identitydomain.Service
	sales       reportingdomain.SalesReports
	impressions reportingdomain.ImpressionReports
	renderer    *export.Renderer
	deliverer   Deliverer
}

func NewRunner(p RunnerParams) *Runner {
	return &Runner{
		log:         p.Log.Named("schedule.runner"),
		cfg:         p.Config.Schedule,
		clock:       p.Clock,
		schedules:   p.Schedules,
		identity:    p.Identity,
		sales:       p.Sales,
		impressions: p.Impressions,
		renderer:    p.Renderer,
		deliverer:   p.Deliverer,
	}
}

// RunOnce drains every due schedule. Each schedule is claimed before it is
// executed; the claim already advanced next_run_at, so a failed run is logged
// and retried on the next recurrence instead of tight-looping.
func (r *Runner) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, r.cfg.Timeout)
	defer cancel()

	var runErr error
	for {
		now := r.clock.Now()
		due, err := r.schedules.Due(ctx, now, claimBatchSize)
		if err != nil {
			return errors.Join(runErr, err)
		}
		if len(due) == 0 {
			break
		}

		progressed := false
		for _, sched := range due {
			if ctx.Err() != nil {
				return errors.Join(runErr, ctx.Err())
			}
			claimed, err := r.schedules.Claim(ctx, sched, now)
			if err != nil {
				runErr = errors.Join(runErr, err)
				continue
			}
			if !claimed {
				continue
			}
			progressed = true
			if err := r.run(ctx, sched); err != nil {
				runErr = errors.Join(runErr, err)
				r.log.Warn("scheduled report failed",
					zap.String("schedule_id", sched.ID.String()),
					zap.String("kind", string(sched.Kind)),
					zap.Error(err),
				)
			}
		}
		if !progressed {
			// Every row in the batch was claimed elsewhere.
			break
		}
	}
	return runErr
}

func (r *Runner) run(ctx context.Context, sched domain.ReportSchedule) error {
	owner, err := r.identity.GetByID(ctx, sched.OwnerID)
	if err != nil {
		return fmt.Errorf("resolve owner: %w", err)
	}
	v := viewer.Viewer{UserID: owner.ID, Superuser: owner.Superuser()}

	in, err := sched.FilterInput()
	if err != nil {
		return err
	}
	req := reportingdomain.ExportRequest{Filter: in, RawResult: true}

	var (
		baseName string
		headers  []string
		records  [][]string
	)
	switch sched.Kind {
	case domain.KindSalesExport:
		result, err := r.sales.Export(ctx, v, req)
		if err != nil {
			return err
		}
		baseName = "sales"
		headers, records = export.SaleRows(result.Rows)
	case domain.KindImpressionsExport:
		result, err := r.impressions.Export(ctx, v, req)
		if err != nil {
			return err
		}
		baseName = "impressions"
		headers, records = export.ImpressionRows(result.Rows)
	default:
		return domain.ErrInvalidKind
	}

	file, err := r.renderer.Render(sched.Format, baseName, headers, records)
	if err != nil {
		return err
	}
	if err := r.deliverer.Deliver(ctx, sched, file); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	r.log.Info("scheduled report delivered",
		zap.String("schedule_id", sched.ID.String()),
		zap.String("kind", string(sched.Kind)),
		zap.String("file", file.Name),
		zap.Int("rows", len(records)),
	)
	return nil
}

// RunForever loops RunOnce on the configured interval until ctx is canceled.
// Run errors never stop the loop.
func (r *Runner) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("schedule run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
