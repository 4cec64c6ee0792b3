package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"taskdash/internal/config"
	"taskdash/internal/exitcode"
	"taskdash/internal/viewmodel"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct {
	yes  bool
	byID bool
}

// SetYes skips the confirmation prompt (for testing).
func (c *RmCmd) SetYes(yes bool) {
	c.yes = yes
}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task (admins)" }
func (c *RmCmd) Usage() string     { return "taskdash rm [common flags] [--yes] [--id] <ref>" }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.yes, "yes", false, "")
	fs.BoolVar(&c.yes, "y", false, "")
	fs.BoolVar(&c.byID, "id", false, "")
}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, args []string, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args, c.byID)
	if err != nil {
		if errors.Is(err, ErrTaskRefRequired) {
			fmt.Fprintln(errOut, "error: task reference required")
		} else {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
		return exitcode.UserError
	}
	if c.yes {
		vm.SetConfirmer(viewmodel.AlwaysConfirm)
	}
	return deleteRef(ctx, cfg, vm, ref, out, errOut)
}

// deleteRef resolves ref against the current list and deletes the task
// through the view-model's confirmation.
func deleteRef(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, ref TaskRef, out, errOut io.Writer) int {
	// The affordance is hidden from non-admins. The server still decides.
	if !vm.CanDelete() {
		fmt.Fprintln(errOut, "error: delete is only available to admins")
		return exitcode.UserError
	}

	task, err := ResolveTaskRef(ctx, vm, ref)
	if err != nil {
		var refErr *RefError
		if errors.As(err, &refErr) {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		return reportError(errOut, err)
	}

	deleted, err := vm.DeleteTask(ctx, task.ID)
	if !deleted {
		if err != nil {
			return reportError(errOut, err)
		}
		if !cfg.Quiet {
			fmt.Fprintln(out, "cancelled")
		}
		return exitcode.Success
	}
	if err != nil {
		fmt.Fprintf(errOut, "error: task deleted but refresh failed: %v\n", err)
		return exitcode.BackendError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
