package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskdash/internal/config"
	"taskdash/internal/exitcode"
	"taskdash/internal/output"
	"taskdash/internal/service"
	"taskdash/internal/viewmodel"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command, the dashboard.
// Handles both `taskdash` (no args) and `taskdash list`.
type ListCmd struct{}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "Show the task dashboard" }
func (c *ListCmd) Usage() string     { return "taskdash list [common flags]" }
func (c *ListCmd) NeedsAuth() bool   { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	tasks, err := vm.ListTasks(ctx)
	if err != nil {
		return reportError(errOut, err)
	}

	renderDashboard(out, vm.User(), tasks, vm.CanDelete(), cfg.Quiet)
	return exitcode.Success
}

// renderDashboard prints the header and task rows. The delete marker is only
// shown to admins.
func renderDashboard(w io.Writer, user *service.User, tasks []service.Task, canDelete, quiet bool) {
	output.FormatHeader(w, user)
	if len(tasks) == 0 {
		if !quiet {
			fmt.Fprintln(w, "no tasks found")
		}
		return
	}
	output.FormatTasks(w, tasks, canDelete)
}
