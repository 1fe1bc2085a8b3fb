package migration

import (
	auditdomain "github.com/santuri/tikiti/internal/audit/domain"
	"github.com/santuri/tikiti/internal/config"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	ticketdomain "github.com/santuri/tikiti/internal/ticket/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite is for local runs only; gorm derives the schema there.
			return conn.AutoMigrate(
				&orderdomain.Order{},
				&ticketdomain.Ticket{},
				&auditdomain.Entry{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
