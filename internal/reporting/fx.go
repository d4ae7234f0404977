package reporting

import (
	"github.com/vendwatch/vendwatch/internal/reporting/impressions"
	"github.com/vendwatch/vendwatch/internal/reporting/sales"
	"go.uber.org/fx"
)

var Module = fx.Module("reporting.service",
	fx.Provide(
		sales.New,
		impressions.New,
	),
)
