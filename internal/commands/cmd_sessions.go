package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/margin/internal/core/annotate"
	"github.com/colonyops/margin/internal/core/feedback"
	"github.com/colonyops/margin/internal/core/session"
	"github.com/colonyops/margin/internal/printer"
	"github.com/colonyops/margin/pkg/iojson"
)

type SessionsCmd struct {
	flags *Flags

	jsonOutput bool
	importer   iojson.FileReader[session.Session]
}

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd(flags *Flags) *SessionsCmd {
	return &SessionsCmd{flags: flags}
}

// Register adds the sessions command to the application.
func (cmd *SessionsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "sessions",
		Usage: "Session management commands",
		Commands: []*cli.Command{
			cmd.lsCmd(),
			cmd.rmCmd(),
			cmd.logCmd(),
			cmd.exportCmd(),
			cmd.importCmd(),
		},
	})
	return app
}

func (cmd *SessionsCmd) lsCmd() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List stored sessions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.runLs,
	}
}

func (cmd *SessionsCmd) runLs(ctx context.Context, c *cli.Command) error {
	app := cmd.flags.App

	opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	sessions, err := app.Sessions.List(opCtx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, sessions)
	}

	w := c.Root().Writer
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	for _, s := range sessions {
		recs, err := app.Feedback.ListAnnotations(opCtx, s.ID)
		if err != nil {
			return fmt.Errorf("list comments: %w", err)
		}
		fmt.Fprintf(w, "%-38s %-24s %2d comments  %s\n",
			s.ID, truncateName(s.Name, 24), len(recs), s.UpdatedAt.Format(time.DateTime))
	}
	return nil
}

func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

func (cmd *SessionsCmd) rmCmd() *cli.Command {
	return &cli.Command{
		Name:          "rm",
		Usage:         "Delete a session and its comments",
		UsageText:     "margin sessions rm <session-id>",
		ShellComplete: SessionIDCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			p := printer.Ctx(ctx)
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("session id is required")
			}

			opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()

			if err := cmd.flags.App.Sessions.Delete(opCtx, id); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			p.Successf("Deleted session %s", id)
			return nil
		},
	}
}

func (cmd *SessionsCmd) logCmd() *cli.Command {
	return &cli.Command{
		Name:          "log",
		Usage:         "Show a session's event log",
		UsageText:     "margin sessions log <session-id>",
		ShellComplete: SessionIDCompleter(cmd.flags),
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return fmt.Errorf("session id is required")
			}

			opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()

			sess, err := cmd.flags.App.Sessions.Get(opCtx, id)
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}
			fmt.Fprint(c.Root().Writer, sess.FormatLog())
			return nil
		},
	}
}

func (cmd *SessionsCmd) exportCmd() *cli.Command {
	return &cli.Command{
		Name:          "export",
		Usage:         "Print a session's feedback summary",
		UsageText:     "margin sessions export <session-id>",
		ShellComplete: SessionIDCompleter(cmd.flags),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the full session as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.runExport,
	}
}

func (cmd *SessionsCmd) runExport(ctx context.Context, c *cli.Command) error {
	app := cmd.flags.App

	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	sess, err := app.Sessions.Get(opCtx, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, sess)
	}

	recs, err := app.Feedback.ListAnnotations(opCtx, sess.ID)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}

	anns := make([]annotate.Annotation, len(recs))
	for i, rec := range recs {
		anns[i] = rec.Annotation
	}

	fmt.Fprintln(c.Root().Writer, feedback.Build(sess, anns))
	return nil
}

func (cmd *SessionsCmd) importCmd() *cli.Command {
	return &cli.Command{
		Name:        "import",
		Usage:       "Import a session from JSON",
		UsageText:   "margin sessions import [-f file]",
		Description: "Reads a session JSON document from a file or stdin and stores it.",
		Flags: []cli.Flag{
			cmd.importer.Flag(),
		},
		Action: cmd.runImport,
	}
}

func (cmd *SessionsCmd) runImport(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	sess, err := cmd.importer.Read()
	if err != nil {
		return err
	}
	if sess.ID == "" {
		return fmt.Errorf("session JSON requires an id")
	}
	if sess.InitialInput == "" {
		return fmt.Errorf("session JSON requires initial input text")
	}

	opCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := cmd.flags.App.Sessions.Save(opCtx, &sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	p.Successf("Imported session %s (%s)", sess.ID, sess.Name)
	return nil
}
