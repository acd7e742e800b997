package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/sdiscuss/pkg/app"
)

// program runs sdiscuss under the system service manager.
type program struct {
	params app.RunParams
	inst   *app.Instance
}

// Start implements service.Interface. It must not block.
func (p *program) Start(service.Service) error {
	cfg, _, err := app.LoadConfig(p.params)
	if err != nil {
		return err
	}
	inst, err := app.Build(context.Background(), cfg, app.Options{Version: version})
	if err != nil {
		return err
	}
	if err := inst.Start(); err != nil {
		inst.Close(context.Background())
		return err
	}
	p.inst = inst
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(service.Service) error {
	if p.inst != nil {
		p.inst.Stop(context.Background())
		p.inst = nil
	}
	return nil
}

func newService(params app.RunParams) (service.Service, error) {
	args := []string{"service", "run"}
	if params.ConfigPath != "" {
		abs, err := filepath.Abs(params.ConfigPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	return service.New(&program{params: params}, &service.Config{
		Name:        "sdiscuss",
		DisplayName: "sdiscuss comment server",
		Description: "Self-hosted comment server with pluggable extensions.",
		Arguments:   args,
	})
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control sdiscuss as a system service",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager (used by the installed unit)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(runParams(cmd))
			if err != nil {
				return err
			}
			return svc.Run()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the service status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(runParams(cmd))
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
			return nil
		},
	})

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(runParams(cmd))
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}
	return cmd
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
