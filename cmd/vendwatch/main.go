package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/vendwatch/vendwatch/internal/clock"
	"github.com/vendwatch/vendwatch/internal/config"
	"github.com/vendwatch/vendwatch/internal/logger"
	"github.com/vendwatch/vendwatch/internal/migration"
	"github.com/vendwatch/vendwatch/internal/observability"
	"github.com/vendwatch/vendwatch/internal/server"
	"github.com/vendwatch/vendwatch/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
