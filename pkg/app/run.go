package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/sdiscuss/internal/config"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the configuration.
	DataDir string

	// LogLevel overrides log.level from the configuration.
	LogLevel string
}

// LoadConfig resolves, loads and validates the configuration, applying
// the overrides in params.
func LoadConfig(params RunParams) (*config.Config, string, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, "", err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}
	if params.DataDir != "" {
		cfg.DataDir = params.DataDir
	}
	if params.LogLevel != "" {
		cfg.Log.Level = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, cfgPath, err
	}
	return cfg, cfgPath, nil
}

// Run loads configuration, starts all modules, and blocks until ctx is
// done or a shutdown signal is received.
func Run(ctx context.Context, params RunParams) error {
	cfg, cfgPath, err := LoadConfig(params)
	if err != nil {
		return err
	}

	inst, err := Build(ctx, cfg, Options{Version: params.Version})
	if err != nil {
		return err
	}
	inst.Logger.Info("starting sdiscuss", "version", params.Version, "commit", params.Commit, "config", cfgPath)

	if err := inst.Start(); err != nil {
		inst.Close(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	inst.Logger.Info("shutdown signal received")
	inst.Stop(context.Background())
	inst.Logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/sdiscuss/sdiscuss.yaml → ~/.config/sdiscuss/sdiscuss.yaml → ./sdiscuss.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "sdiscuss", "sdiscuss.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "sdiscuss", "sdiscuss.yaml"))
	}

	candidates = append(candidates, "sdiscuss.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
