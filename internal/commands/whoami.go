package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"taskdash/internal/config"
	"taskdash/internal/exitcode"
	"taskdash/internal/output"
	"taskdash/internal/session"
	"taskdash/internal/viewmodel"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd prints the stored user. It makes no network calls.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return nil }
func (c *WhoamiCmd) Synopsis() string  { return "Show the logged-in user" }
func (c *WhoamiCmd) Usage() string     { return "taskdash whoami [common flags]" }
func (c *WhoamiCmd) NeedsAuth() bool   { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	printUser(out, vm)
	return exitcode.Success
}

func printUser(w io.Writer, vm *viewmodel.Model) {
	user := vm.User()
	if user == nil {
		fmt.Fprintln(w, "not logged in")
		return
	}
	var expires time.Time
	if exp, ok := session.TokenExpiry(vm.Token()); ok {
		expires = exp
	}
	output.FormatUser(w, *user, expires)
}
