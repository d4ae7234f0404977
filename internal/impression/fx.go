package impression

import (
	"github.com/vendwatch/vendwatch/internal/impression/service"
	"go.uber.org/fx"
)

var Module = fx.Module("impression.service",
	fx.Provide(service.New),
)
