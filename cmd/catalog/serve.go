package main

import (
	"github.com/smallbiznis/catalog/internal/migration"
	"github.com/smallbiznis/catalog/internal/observability"
	"github.com/smallbiznis/catalog/internal/server"
	"github.com/smallbiznis/catalog/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			newApp().Run()
		},
	}
}

// newApp assembles the service. server.Module carries the config module.
func newApp() *fx.App {
	return fx.New(
		observability.Module,
		db.Module,
		migration.Module,
		server.Module,
	)
}
