package schedule

import (
	"context"

	"github.com/vendwatch/vendwatch/internal/config"
	"github.com/vendwatch/vendwatch/internal/schedule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("schedule",
	fx.Provide(service.New),
	fx.Provide(NewLogDeliverer),
	fx.Provide(NewRunner),
	fx.Invoke(registerRunner),
)

func registerRunner(lc fx.Lifecycle, cfg config.Config, runner *Runner) {
	if !cfg.Schedule.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go runner.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
