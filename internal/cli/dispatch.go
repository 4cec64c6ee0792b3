// Package cli parses the command line, builds the view-model and runs the
// selected command.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"taskdash/internal/commands"
	"taskdash/internal/config"
	"taskdash/internal/exitcode"
	"taskdash/internal/logging"
	"taskdash/internal/service"
	"taskdash/internal/session"
	"taskdash/internal/viewmodel"
)

// ServiceFactory creates a Service for cfg carrying token, or an anonymous
// one when token is empty. It is called again whenever the credential
// changes.
type ServiceFactory func(ctx context.Context, cfg *config.Config, token string) (service.Service, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  ServiceFactory
}

// NewDispatcher creates a new dispatcher with the given registry and service factory.
func NewDispatcher(registry *commands.Registry, factory ServiceFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command. in feeds
// password and confirmation prompts and may be nil.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	// No args -> the dashboard
	if len(args) == 0 {
		args = []string{"list"}
	}

	cmdName := args[0]

	// Flags require a command
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatchCommand(ctx, cmd, args[1:], in, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, in io.Reader, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir, apiURL string
	var quiet, debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.StringVar(&apiURL, "api-url", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", flagError(err))
		return exitcode.UserError
	}

	// A leading dash left over after parsing is a flag placed after "--"
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	if apiURL != "" {
		if err := cfg.OverrideAPIURL(apiURL); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.UserError
		}
	}
	cfg.Quiet = quiet
	cfg.Debug = debug
	cfg.In = in

	logger := logging.New(debug, errOut)
	ctx = logger.WithContext(ctx)
	logger.Debug().Str("command", cmd.Name()).Str("api", cfg.API.URL).Str("dir", cfg.Dir).Msg("dispatch")

	vm, code := d.newModel(ctx, cfg, cmd, logger, errOut)
	if vm == nil {
		return code
	}

	if cmd.NeedsAuth() && vm.View() != viewmodel.ViewDashboard {
		fmt.Fprintf(errOut, "error: not logged in (run: %s login)\n", config.AppName)
		return exitcode.AuthError
	}

	return cmd.Run(ctx, cfg, vm, positionalArgs, out, errOut)
}

// newModel builds the view-model and restores the stored session. A nil
// model means the command must not run; the exit code says why.
func (d *Dispatcher) newModel(ctx context.Context, cfg *config.Config, cmd commands.Command, logger zerolog.Logger, errOut io.Writer) (*viewmodel.Model, int) {
	var clientErr error
	factory := func(ctx context.Context, token string) (service.Service, error) {
		svc, err := d.factory(ctx, cfg, token)
		if err != nil {
			clientErr = err
		}
		return svc, err
	}

	vm := viewmodel.New(
		session.NewStore(cfg.SessionPath()),
		factory,
		viewmodel.WithLogger(logger),
		viewmodel.WithDefaultTeam(cfg.API.DefaultTeam),
		viewmodel.WithConfirmer(viewmodel.PromptConfirmer(cfg.In, errOut)),
	)

	err := vm.RestoreSession(ctx)
	switch {
	case err == nil:
		return vm, exitcode.Success
	case clientErr != nil:
		fmt.Fprintf(errOut, "error: backend error: %v\n", clientErr)
		return nil, exitcode.BackendError
	case !cmd.NeedsAuth():
		// login and logout repair a broken session file
		logger.Debug().Err(err).Msg("ignoring stored session")
		return vm, exitcode.Success
	case errors.Is(err, session.ErrIncomplete):
		fmt.Fprintf(errOut, "error: stored session is incomplete (run: %s login)\n", config.AppName)
	default:
		fmt.Fprintf(errOut, "error: auth error: %v (run: %s login)\n", err, config.AppName)
	}
	return nil, exitcode.AuthError
}

// flagError rewrites flag package errors into the CLI's wording.
func flagError(err error) string {
	errStr := err.Error()

	// Missing flag value
	if strings.HasPrefix(errStr, "flag needs an argument:") {
		return errStr
	}

	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		return "unknown flag: " + strings.TrimPrefix(errStr, "flag provided but not defined: ")
	}

	return errStr
}
