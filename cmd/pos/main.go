package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pos/internal/clock"
	"github.com/smallbiznis/pos/internal/config"
	"github.com/smallbiznis/pos/internal/migration"
	"github.com/smallbiznis/pos/internal/observability"
	"github.com/smallbiznis/pos/internal/server"
	"github.com/smallbiznis/pos/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeID)
}
