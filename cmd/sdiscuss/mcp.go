package main

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/mcptools"
	"github.com/flemzord/sdiscuss/modules/ext/moderation"
	"github.com/flemzord/sdiscuss/pkg/app"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only moderator tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := app.LoadConfig(runParams(cmd))
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs are dropped.
			inst, err := app.Build(cmd.Context(), cfg, app.Options{Version: version, LogOutput: io.Discard, Headless: true})
			if err != nil {
				return err
			}
			if err := inst.Start(); err != nil {
				inst.Close(context.Background())
				return err
			}
			defer inst.Stop(context.Background())

			mod, err := core.ServiceAs[*moderation.Extension](inst.Context, moderation.ServiceName)
			if err != nil {
				mod = nil
			}
			return server.ServeStdio(mcptools.NewServer(version, inst.Pipeline, mod))
		},
	}
}
