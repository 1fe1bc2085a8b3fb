package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/santuri/tikiti/internal/audit"
	"github.com/santuri/tikiti/internal/clock"
	"github.com/santuri/tikiti/internal/config"
	"github.com/santuri/tikiti/internal/gateway"
	"github.com/santuri/tikiti/internal/logger"
	"github.com/santuri/tikiti/internal/migration"
	"github.com/santuri/tikiti/internal/observability"
	"github.com/santuri/tikiti/internal/order"
	"github.com/santuri/tikiti/internal/ratelimit"
	"github.com/santuri/tikiti/internal/reconcile"
	"github.com/santuri/tikiti/internal/server"
	"github.com/santuri/tikiti/internal/status"
	"github.com/santuri/tikiti/internal/ticket"
	"github.com/santuri/tikiti/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Functional domains
		gateway.Module,
		order.Module,
		ticket.Module,
		audit.Module,
		reconcile.Module,
		status.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
