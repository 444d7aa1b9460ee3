package db

import (
	"context"

	"github.com/smallbiznis/pos/internal/config"
	obslogger "github.com/smallbiznis/pos/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the primary connection pool with tracing and pool metrics attached.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	logCfg := obslogger.DefaultGormLoggerConfig()
	logCfg.Expected = IsDuplicateKeyErr
	if cfg.DBSlowQuery > 0 {
		logCfg.SlowThreshold = cfg.DBSlowQuery
	}
	if cfg.Observability.LogLevel == "debug" {
		logCfg.Level = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(logCfg),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.DBName))); err != nil {
		return nil, err
	}
	if err := conn.Use(gormprom.New(gormprom.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	poolCfg := ConfigFrom(cfg)
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(poolCfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(poolCfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(poolCfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(poolCfg.ConnMaxIdleTime)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := sqlDB.PingContext(ctx); err != nil {
					return err
				}
				if log != nil {
					log.Info("database connected", zap.String("type", poolCfg.Type), zap.String("name", poolCfg.Name))
				}
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return sqlDB.Close()
			},
		})
	}

	return conn, nil
}
