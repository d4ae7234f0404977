package product

import (
	"github.com/vendwatch/vendwatch/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(service.New),
)
