package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"taskdash/internal/config"
	"taskdash/internal/exitcode"
	"taskdash/internal/viewmodel"
)

func init() {
	Register(&AddCmd{})
	Register(&CreateCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	team string
}

// SetTeam sets the team override (for testing).
func (c *AddCmd) SetTeam(team string) {
	c.team = team
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return nil }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string     { return "taskdash add [common flags] [--team <team-id>] <title...>" }
func (c *AddCmd) NeedsAuth() bool   { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.team, "team", "", "")
	fs.StringVar(&c.team, "t", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, args []string, out, errOut io.Writer) int {
	return runAdd(ctx, cfg, vm, c.team, args, out, errOut)
}

// CreateCmd is an alias for AddCmd.
type CreateCmd struct {
	team string
}

func (c *CreateCmd) Name() string      { return "create" }
func (c *CreateCmd) Aliases() []string { return nil }
func (c *CreateCmd) Synopsis() string  { return "Create a task (alias for add)" }
func (c *CreateCmd) Usage() string     { return "taskdash create [common flags] [--team <team-id>] <title...>" }
func (c *CreateCmd) NeedsAuth() bool   { return true }

func (c *CreateCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.team, "team", "", "")
	fs.StringVar(&c.team, "t", "", "")
}

func (c *CreateCmd) Run(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, args []string, out, errOut io.Writer) int {
	return runAdd(ctx, cfg, vm, c.team, args, out, errOut)
}

// runAdd is the shared implementation for add and create commands.
func runAdd(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, team string, args []string, out, errOut io.Writer) int {
	title := strings.Join(args, " ")
	if strings.TrimSpace(title) == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}

	team = strings.TrimSpace(team)
	if team == "" {
		team = vm.Team()
	}
	zerolog.Ctx(ctx).Debug().Str("team", team).Msg("create task")

	task, err := vm.CreateTaskInTeam(ctx, title, team)
	if err != nil {
		return reportError(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "ok: %s\n", task.ID)
	}
	return exitcode.Success
}
