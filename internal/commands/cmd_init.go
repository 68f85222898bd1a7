package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/colonyops/margin/internal/core/config"
	"github.com/colonyops/margin/internal/printer"
)

type InitCmd struct {
	flags *Flags

	yes   bool
	force bool
}

// NewInitCmd creates the init command.
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application.
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Initialize margin configuration with an interactive wizard",
		UsageText: "margin init [options]",
		Description: `Sets up margin for first-time use.

The wizard asks for the optimizer backend URL (leave empty for offline
use) and writes the configuration file. Use --yes to accept defaults
without prompts and --force to overwrite an existing config.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "accept defaults without prompting",
				Destination: &cmd.yes,
			},
			&cli.BoolFlag{
				Name:        "force",
				Aliases:     []string{"f"},
				Usage:       "overwrite existing configuration",
				Destination: &cmd.force,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *InitCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	configPath := cmd.flags.ConfigPath

	if _, err := os.Stat(configPath); err == nil && !cmd.force {
		if cmd.yes {
			return fmt.Errorf("config exists at %s; use --force to overwrite", configPath)
		}

		var overwrite bool
		err := huh.NewConfirm().
			Title("Config file already exists").
			Description(configPath + "\nOverwrite? (a backup will be created)").
			Value(&overwrite).
			Run()
		if err != nil {
			return err
		}
		if !overwrite {
			p.Infof("Init cancelled")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	backendURL := ""
	sync := true

	if !cmd.yes {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Optimizer backend URL").
				Description("Leave empty to run offline (annotations stay local)").
				Placeholder("http://localhost:5000").
				Value(&backendURL),
			huh.NewConfirm().
				Title("Sync comments to the backend?").
				Description("Only applies when a backend URL is set").
				Value(&sync),
		))
		if err := form.Run(); err != nil {
			return err
		}
	}

	cfg.Backend.URL = strings.TrimSpace(backendURL)
	cfg.Backend.Sync = &sync

	if err := writeConfig(&cfg, configPath); err != nil {
		return err
	}

	p.Successf("Wrote config: %s", configPath)
	p.Infof("Data directory: %s", cmd.flags.DataDir)
	if cfg.Backend.URL == "" {
		p.Infof("Running offline; set backend.url later to enable optimization")
	}
	return nil
}

// writeConfig backs up any existing file, then writes cfg as YAML.
func writeConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		backup := fmt.Sprintf("%s.bak.%s", path, time.Now().Format("20060102-150405"))
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("backup config: %w", err)
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
