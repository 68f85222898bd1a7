package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/margin/internal/printer"
)

type ReoptimizeCmd struct {
	flags *Flags

	keepComments bool
}

// NewReoptimizeCmd creates the reoptimize command.
func NewReoptimizeCmd(flags *Flags) *ReoptimizeCmd {
	return &ReoptimizeCmd{flags: flags}
}

// Register adds the reoptimize command to the application.
func (cmd *ReoptimizeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "reoptimize",
		Usage:     "Re-optimize a session's prompt using its feedback",
		UsageText: "margin reoptimize <session-id>",
		Description: `Asks the backend to produce a new prompt for the session, taking the
comments collected so far into account. The session's comments are
cleared afterwards since their offsets belong to the old text.`,
		ShellComplete: SessionIDCompleter(cmd.flags),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "keep-comments",
				Usage:       "keep stored comments instead of clearing them",
				Destination: &cmd.keepComments,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ReoptimizeCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	app := cmd.flags.App

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if !app.Online() {
		return fmt.Errorf("no backend configured; set backend.url in %s", cmd.flags.ConfigPath)
	}

	opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	sess, err := app.Sessions.Get(opCtx, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	result, err := app.Optimizer.OptimizeWithFeedback(opCtx, sess.ID)
	if err != nil {
		return fmt.Errorf("reoptimize: %w", err)
	}

	sess.SetOptimizedPrompt(result.Result, time.Now())
	if err := app.Sessions.Save(opCtx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if !cmd.keepComments {
		if err := app.Feedback.DeleteSessionAnnotations(opCtx, sess.ID); err != nil {
			return fmt.Errorf("clear comments: %w", err)
		}
	}

	p.Successf("Re-optimized session %s", sess.ID)
	fmt.Fprintln(c.Root().Writer, sess.Text())
	return nil
}
