package geography

import (
	"github.com/vendwatch/vendwatch/internal/geography/service"
	"go.uber.org/fx"
)

var Module = fx.Module("geography.service",
	fx.Provide(service.New),
)
