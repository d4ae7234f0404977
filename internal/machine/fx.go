package machine

import (
	"github.com/vendwatch/vendwatch/internal/machine/service"
	"go.uber.org/fx"
)

var Module = fx.Module("machine.service",
	fx.Provide(service.New),
)
