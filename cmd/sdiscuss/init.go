package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/sdiscuss/internal/config"
	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/identity"
)

// answers is what the init wizard collects.
type answers struct {
	DataDir    string
	Bind       string
	Identity   string
	Markdown   bool
	Extensions []string
	Exempt     []string
}

func defaultAnswers() answers {
	return answers{
		DataDir:    "./data",
		Bind:       "127.0.0.1:8080",
		Identity:   "identity.session",
		Markdown:   true,
		Extensions: []string{"validate_len", "capture_author"},
		Exempt:     []string{identity.OpFetch, identity.OpView},
	}
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			a := defaultAnswers()
			if !yes {
				if err := wizard(&a).Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return err
				}
			}

			raw, err := renderConfig(a)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "sdiscuss.yaml", "Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the defaults without prompting")
	return cmd
}

func wizard(a *answers) *huh.Form {
	var exts []huh.Option[string]
	for _, info := range core.GetModulesByNamespace(core.ExtensionNamespace) {
		name := info.ID.Name()
		exts = append(exts, huh.NewOption(name+" - "+info.Description, name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data directory").
				Value(&a.DataDir),
			huh.NewInput().
				Title("Listen address").
				Value(&a.Bind),
			huh.NewSelect[string]().
				Title("Identity").
				Options(
					huh.NewOption("Anonymous cookie sessions", "identity.session"),
					huh.NewOption("Everyone is anonymous", "identity.null"),
				).
				Value(&a.Identity),
			huh.NewConfirm().
				Title("Render comments as Markdown?").
				Value(&a.Markdown),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Extensions").
				Options(exts...).
				Value(&a.Extensions),
			huh.NewMultiSelect[string]().
				Title("Operations that skip identity resolution").
				Options(huh.NewOptions(identity.Operations()...)...).
				Value(&a.Exempt),
		),
	)
}

// renderConfig turns answers into a configuration file and checks that it
// validates against the compiled modules.
func renderConfig(a answers) ([]byte, error) {
	var gw yaml.Node
	if err := gw.Encode(map[string]string{"bind": a.Bind}); err != nil {
		return nil, err
	}

	cfg := config.Config{
		Version: "1",
		DataDir: a.DataDir,
		Drivers: config.Drivers{
			Store:    "store.sqlite",
			Identity: a.Identity,
		},
		Extensions: config.Extensions{Enabled: a.Extensions},
		Identity:   config.IdentityConfig{Exempt: a.Exempt},
		Modules:    map[string]yaml.Node{"gateway.http": gw},
	}
	if a.Markdown {
		cfg.Drivers.Renderer = "render.markdown"
	}

	raw, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, err
	}
	parsed, err := config.Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(parsed); err != nil {
		return nil, err
	}
	return raw, nil
}
