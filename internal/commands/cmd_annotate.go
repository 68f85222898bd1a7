package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/margin/internal/core/prompts"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/margin"
	"github.com/colonyops/margin/internal/profiler"
	"github.com/colonyops/margin/internal/tui"
)

type AnnotateCmd struct {
	flags *Flags

	sessionID    string
	profilerPort int
}

// NewAnnotateCmd creates the annotate command, also used as the default
// action when margin runs without a subcommand.
func NewAnnotateCmd(flags *Flags) *AnnotateCmd {
	return &AnnotateCmd{flags: flags}
}

// Flags returns the annotate-specific flags for registration on the root
// command.
func (cmd *AnnotateCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "open this session directly, skipping the picker",
			Destination: &cmd.sessionID,
		},
		&cli.IntFlag{
			Name:        "profiler-port",
			Usage:       "enable pprof HTTP endpoint on specified port (e.g., 6060)",
			Sources:     cli.EnvVars("MARGIN_PROFILER_PORT"),
			Destination: &cmd.profilerPort,
		},
	}
}

// Run executes the TUI. Exported for use as default command.
func (cmd *AnnotateCmd) Run(ctx context.Context, c *cli.Command) error {
	app := cmd.flags.App

	if cmd.profilerPort > 0 {
		profServer := profiler.New(cmd.profilerPort)
		if err := profServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start profiler: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := profServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown profiler server")
			}
		}()
		log.Info().
			Str("url", fmt.Sprintf("http://%s/debug/pprof/", profServer.Addr())).
			Msg("profiler endpoint available")
	}

	sessionID := cmd.sessionID
	if path := c.Args().First(); path != "" && sessionID == "" {
		id, err := cmd.createSessionFromFile(ctx, path)
		if err != nil {
			return err
		}
		sessionID = id
	}

	model := tui.New(tui.Options{
		Deps:       appDeps(app),
		PromptsDir: ".",
		Include:    app.Config.Prompts.Include,
		SessionID:  sessionID,
	})

	program := tea.NewProgram(model)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return model.Err()
}

// createSessionFromFile starts a new session from a prompt file so the TUI
// can open it directly. The prompt is optimized first when a backend is
// configured.
func (cmd *AnnotateCmd) createSessionFromFile(ctx context.Context, path string) (string, error) {
	app := cmd.flags.App

	text, err := prompts.Load(path)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	now := time.Now()
	id := uuid.NewString()
	name := filepath.Base(path)
	var sess *session.Session

	if app.Online() {
		result, err := app.Optimizer.Optimize(opCtx, text)
		if err != nil {
			return "", fmt.Errorf("optimize: %w", err)
		}
		if result.SessionID != "" {
			id = result.SessionID
		}
		sess = session.New(id, name, text, now)
		sess.SetOptimizedPrompt(result.Result, now)
		sess.Metrics = result.Metrics
	} else {
		sess = session.New(id, name, text, now)
	}

	if err := app.Sessions.Save(opCtx, sess); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return sess.ID, nil
}

// appDeps maps App services onto the TUI dependency set.
func appDeps(app *margin.App) tui.Deps {
	return tui.Deps{
		Sessions:  app.Sessions,
		Feedback:  app.Feedback,
		Optimizer: app.Optimizer,
		Sync:      app.Online() && app.Config.Backend.SyncEnabled(),
	}
}

// requestTimeout bounds CLI-side store and backend calls.
const requestTimeout = 30 * time.Second
