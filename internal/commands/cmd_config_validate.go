package commands

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/margin/internal/printer"
)

type ConfigValidateCmd struct {
	flags *Flags
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "margin config validate",
				Description: "Validates the configuration file, checking paths, the backend URL, and prompt glob patterns.",
				Action:      cmd.run,
			},
		},
	})

	return app
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	for _, warn := range cmd.flags.Config.Warnings() {
		p.Infof("%s: %s", warn.Category, warn.Message)
	}

	err := cmd.flags.Config.ValidateDeep(cmd.flags.ConfigPath)
	if err == nil {
		p.Successf("Configuration is valid")
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			p.Errorf("%s: %s", fe.Field, fe.Err)
		}
		return cli.Exit("", 1)
	}

	p.Errorf("%s", err)
	return cli.Exit("", 1)
}
