package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// SessionIDCompleter returns a ShellCompleteFunc that suggests stored
// session ids as positional completions. Set this as the ShellComplete
// field on any cli.Command that accepts a session id argument.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func SessionIDCompleter(flags *Flags) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if flags.App == nil {
			return
		}
		sessions, err := flags.App.Sessions.List(ctx)
		if err != nil {
			return
		}

		w := cmd.Root().Writer
		for _, s := range sessions {
			_, _ = fmt.Fprintln(w, s.ID)
		}
	}
}
