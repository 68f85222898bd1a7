package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/margin/internal/commands"
	"github.com/colonyops/margin/internal/core/config"
	"github.com/colonyops/margin/internal/data/db"
	"github.com/colonyops/margin/internal/margin"
	"github.com/colonyops/margin/internal/optimizer"
	"github.com/colonyops/margin/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		database  *db.DB
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "margin",
		Usage:     "Annotate optimized prompts with inline feedback",
		UsageText: "margin [global options] command [command options]",
		Description: `Margin reviews optimizer output the way an editor marks up a draft:
select a span of the prompt, attach a comment, and hand the collected
feedback back to the optimizer for another pass.

Run 'margin' with no arguments to open the interactive annotator.
Run 'margin optimize <file>' to start a session from a prompt file.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("MARGIN_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file",
				Sources:     cli.EnvVars("MARGIN_LOG_FILE"),
				Value:       commands.DefaultLogFile(),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("MARGIN_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("MARGIN_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file so TUI output stays clean.
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			dbOpts := db.OpenOptions{
				MaxOpenConns:  cfg.Database.MaxOpenConns,
				MaxIdleConns:  cfg.Database.MaxIdleConns,
				BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
			}
			database, err = db.Open(cfg.DataDir, dbOpts)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			var client *optimizer.Client
			if cfg.Backend.URL != "" {
				client = optimizer.New(cfg.Backend.URL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)
			}

			flags.App = margin.NewApp(cfg, database, client, build())
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	annotateCmd := commands.NewAnnotateCmd(flags)

	app = commands.NewOptimizeCmd(flags).Register(app)
	app = commands.NewReoptimizeCmd(flags).Register(app)
	app = commands.NewSessionsCmd(flags).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)
	app = commands.NewInitCmd(flags).Register(app)

	// Register annotate flags on root command and make the TUI the
	// default action when no subcommand is provided.
	app.Flags = append(app.Flags, annotateCmd.Flags()...)
	app.Action = func(ctx context.Context, c *cli.Command) error {
		// A bare argument is a prompt file to annotate; anything else is
		// a mistyped command.
		if arg := c.Args().First(); arg != "" {
			if _, err := os.Stat(arg); err != nil {
				return fmt.Errorf("unknown command %q. Run 'margin --help' for usage", arg)
			}
		}
		return annotateCmd.Run(ctx, c)
	}

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		fmt.Println(err.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
