package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/margin/internal/core/prompts"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/printer"
)

type OptimizeCmd struct {
	flags *Flags

	name string
}

// NewOptimizeCmd creates the optimize command.
func NewOptimizeCmd(flags *Flags) *OptimizeCmd {
	return &OptimizeCmd{flags: flags}
}

// Register adds the optimize command to the application.
func (cmd *OptimizeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "optimize",
		Usage:     "Optimize a prompt and start an annotation session",
		UsageText: "margin optimize [options] [prompt-file]",
		Description: `Runs a prompt through the optimizer backend and stores the result as a
new session ready for annotation.

The prompt text comes from the file argument, or from stdin when piped.
Without a configured backend the session is created from the raw text.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "name",
				Aliases:     []string{"n"},
				Usage:       "session name (defaults to the file name)",
				Destination: &cmd.name,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *OptimizeCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	app := cmd.flags.App

	text, name, err := cmd.readInput(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("prompt text is empty")
	}

	opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	now := time.Now()
	id := uuid.NewString()
	var sess *session.Session

	if app.Online() {
		result, err := app.Optimizer.Optimize(opCtx, text)
		if err != nil {
			return fmt.Errorf("optimize: %w", err)
		}
		if result.SessionID != "" {
			id = result.SessionID
		}
		sess = session.New(id, name, text, now)
		sess.SetOptimizedPrompt(result.Result, now)
		sess.Metrics = result.Metrics
	} else {
		p.Warnf("No backend configured; creating session from raw text")
		sess = session.New(id, name, text, now)
	}

	if err := app.Sessions.Save(opCtx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	p.Successf("Created session %s (%s)", sess.ID, sess.Name)
	fmt.Fprintln(c.Root().Writer, sess.Text())
	return nil
}

// readInput resolves the prompt text and a session name from the file
// argument or stdin.
func (cmd *OptimizeCmd) readInput(c *cli.Command) (text, name string, err error) {
	name = cmd.name

	if path := c.Args().First(); path != "" {
		text, err = prompts.Load(path)
		if err != nil {
			return "", "", fmt.Errorf("read prompt: %w", err)
		}
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return text, name, nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return "", "", fmt.Errorf("no input provided (stdin is a terminal); pass a prompt file or pipe text")
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	if name == "" {
		name = "untitled"
	}
	return string(raw), name, nil
}
