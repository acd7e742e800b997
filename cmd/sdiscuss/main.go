// Package main is the entry point for the sdiscuss CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flemzord/sdiscuss/internal/config"
	"github.com/flemzord/sdiscuss/internal/core"
	_ "github.com/flemzord/sdiscuss/modules/standard"
	"github.com/flemzord/sdiscuss/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sdiscuss",
		Short:         "A self-hosted comment server with pluggable extensions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.AddCommand(versionCmd(), startCmd(), configCmd(), extensionsCmd(), initCmd(), serviceCmd(), mcpCmd())
	return root
}

// runParams collects the flags shared by commands that load a config.
func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	p := app.RunParams{ConfigPath: cfgPath, Version: version, Commit: commit, Date: date}
	if f := cmd.Flags().Lookup("data-dir"); f != nil {
		p.DataDir = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		p.LogLevel = f.Value.String()
	}
	return p
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sdiscuss %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start sdiscuss with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), runParams(cmd))
		},
	}
	cmd.Flags().String("data-dir", "", "Override data_dir")
	cmd.Flags().String("log-level", "", "Override log.level (debug, info, warn, error)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and load every module once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := runParams(cmd)
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			cfg, _, err := app.LoadConfig(params)
			if err != nil {
				return err
			}

			inst, err := app.Build(cmd.Context(), cfg, app.Options{Version: version, LogOutput: io.Discard, Headless: true})
			if err != nil {
				return err
			}
			defer inst.Close(context.Background())

			out := cmd.OutOrStdout()
			ids := config.Resolve(cfg)
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			names := inst.Pipeline.Dispatcher.Set().Names()
			fmt.Fprintf(out, "Extensions (%d): %s\n", len(names), strings.Join(names, ", "))
			return nil
		},
	})
	return cmd
}

func extensionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extensions",
		Short: "List compiled extensions and their capabilities",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			for _, info := range core.GetModulesByNamespace(core.ExtensionNamespace) {
				fmt.Fprintf(out, "%-22s %s\n", info.ID.Name(), info.Description)
				if len(info.Capabilities) > 0 {
					fmt.Fprintf(out, "%-22s [%s]\n", "", strings.Join(info.Capabilities, ", "))
				}
			}
		},
	}
}
