package schedule

import (
	"context"

	"github.com/vendwatch/vendwatch/internal/export"
	"github.com/vendwatch/vendwatch/internal/schedule/domain"
	"go.uber.org/zap"
)

// Deliverer hands a rendered report to its recipient. Wire delivery (email,
// object storage) plugs in here; the default implementation only logs.
type Deliverer interface {
	Deliver(ctx context.Context, sched domain.ReportSchedule, file *export.File) error
}

type logDeliverer struct {
	log *zap.Logger
}

func NewLogDeliverer(log *zap.Logger) Deliverer {
	return &logDeliverer{log: log.Named("schedule.deliverer")}
}

func (d *logDeliverer) Deliver(_ context.Context, sched domain.ReportSchedule, file *export.File) error {
	d.log.Info("report ready for delivery",
		zap.String("schedule_id", sched.ID.String()),
		zap.String("recipient", sched.Recipient),
		zap.String("file", file.Name),
		zap.Int("bytes", len(file.Data)),
	)
	return nil
}
