package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qrdine/internal/clock"
	"github.com/smallbiznis/qrdine/internal/config"
	"github.com/smallbiznis/qrdine/internal/migration"
	"github.com/smallbiznis/qrdine/internal/observability"
	"github.com/smallbiznis/qrdine/internal/server"
	"github.com/smallbiznis/qrdine/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the domain modules behind it
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
