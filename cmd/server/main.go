// @title                       Tenant Auth API
// @version                     1.0
// @description                 Multi-tenant registration, login and token refresh.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/medistock/tenant-auth/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool                `help:"Enable debug logging."`
		Version kong.VersionFlag    `help:"Print the version and exit."`
		Serve   commands.ServeCmd   `cmd:"" default:"1" help:"Start the HTTP API."`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply pending Postgres migrations and exit."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("tenant-auth"),
		kong.Description("Multi-tenant authentication service."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
