// Command docgen generates CLI reference documentation from the margin
// command definitions. Output is written to docs/cli-reference.md.
package main

import (
	"fmt"
	"os"

	docs "github.com/urfave/cli-docs/v3"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/margin/internal/commands"
)

func main() {
	flags := &commands.Flags{}

	root := &cli.Command{
		Name:      "margin",
		Usage:     "Annotate optimized prompts with inline feedback",
		UsageText: "margin [global options] command [command options]",
		Description: `Margin reviews optimizer output the way an editor marks up a draft:
select a span of the prompt, attach a comment, and hand the collected
feedback back to the optimizer for another pass.

Run 'margin' with no arguments to open the interactive annotator.
Run 'margin optimize <file>' to start a session from a prompt file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error, fatal, panic)",
				Sources: cli.EnvVars("MARGIN_LOG_LEVEL"),
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "path to log file",
				Sources: cli.EnvVars("MARGIN_LOG_FILE"),
				Value:   commands.DefaultLogFile(),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("MARGIN_CONFIG"),
				Value:   commands.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "path to data directory",
				Sources: cli.EnvVars("MARGIN_DATA_DIR"),
				Value:   commands.DefaultDataDir(),
			},
		},
	}

	annotateCmd := commands.NewAnnotateCmd(flags)
	root.Flags = append(root.Flags, annotateCmd.Flags()...)

	root = commands.NewOptimizeCmd(flags).Register(root)
	root = commands.NewReoptimizeCmd(flags).Register(root)
	root = commands.NewSessionsCmd(flags).Register(root)
	root = commands.NewConfigValidateCmd(flags).Register(root)
	root = commands.NewInitCmd(flags).Register(root)

	md, err := docs.ToMarkdown(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating docs: %v\n", err)
		os.Exit(1)
	}

	outPath := "docs/cli-reference.md"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.WriteFile(outPath, []byte(md), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s\n", outPath)
}
