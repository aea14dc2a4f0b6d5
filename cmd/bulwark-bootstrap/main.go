package main

import (
	"context"

	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Version  kong.VersionFlag
		LogLevel string `help:"Log level." default:"info" env:"BULWARK_LOG_LEVEL"`

		Migrate MigrateCmd `cmd:"" help:"Apply database schema migrations."`
		Seed    SeedCmd    `cmd:"" help:"Create the platform roles and the platform owner account."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("bulwark-bootstrap"),
		kong.Description("One-shot setup of a bulwark database."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{LogLevel: cli.LogLevel})
	cmd.FatalIfErrorf(err)
}
