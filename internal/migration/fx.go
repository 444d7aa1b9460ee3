package migration

import (
	"strings"

	"github.com/smallbiznis/pos/internal/config"
	"github.com/smallbiznis/pos/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBMigrate {
			if err := applySchema(conn, cfg); err != nil {
				return err
			}
			log.Info("schema up to date", zap.String("type", cfg.DBType))
		}

		if cfg.SeedDemo {
			return seed.EnsureDemo(conn, cfg, log)
		}
		return nil
	}),
)

func applySchema(conn *gorm.DB, cfg config.Config) error {
	if !strings.EqualFold(strings.TrimSpace(cfg.DBType), "postgres") {
		return AutoMigrate(conn)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
