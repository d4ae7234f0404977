package migration

import (
	"github.com/vendwatch/vendwatch/internal/config"
	geographydomain "github.com/vendwatch/vendwatch/internal/geography/domain"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	machinedomain "github.com/vendwatch/vendwatch/internal/machine/domain"
	productdomain "github.com/vendwatch/vendwatch/internal/product/domain"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	scheduledomain "github.com/vendwatch/vendwatch/internal/schedule/domain"
	"github.com/vendwatch/vendwatch/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql installs are for local use; gorm's schema
			// sync is enough there.
			if err := conn.AutoMigrate(
				&geographydomain.Geography{},
				&machinedomain.Machine{},
				&machinedomain.MachineImpression{},
				&identitydomain.User{},
				&identitydomain.MachineUser{},
				&identitydomain.ProductUser{},
				&productdomain.ProductCategory{},
				&productdomain.Product{},
				&saledomain.Sale{},
				&impressiondomain.Impression{},
				&scheduledomain.ReportSchedule{},
			); err != nil {
				return err
			}
		}

		if cfg.BootstrapAdminEmail != "" {
			return seed.EnsureAdmin(conn, cfg.BootstrapAdminEmail)
		}
		return nil
	}),
)
