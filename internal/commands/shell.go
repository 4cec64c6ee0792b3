package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskdash/internal/config"
	"taskdash/internal/exitcode"
	"taskdash/internal/session"
	"taskdash/internal/viewmodel"
)

func init() {
	Register(&ShellCmd{})
}

// ShellCmd runs an interactive session: the auth form while logged out, the
// live dashboard while logged in.
type ShellCmd struct{}

func (c *ShellCmd) Name() string      { return "shell" }
func (c *ShellCmd) Aliases() []string { return []string{"ui"} }
func (c *ShellCmd) Synopsis() string  { return "Interactive dashboard with live updates" }
func (c *ShellCmd) Usage() string     { return "taskdash shell [common flags]" }
func (c *ShellCmd) NeedsAuth() bool   { return false }

func (c *ShellCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ShellCmd) Run(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if cfg.In == nil {
		fmt.Fprintln(errOut, "error: shell needs an input stream")
		return exitcode.UserError
	}

	sh := &shell{
		cfg:     cfg,
		vm:      vm,
		scanner: bufio.NewScanner(cfg.In),
		out:     &lockedWriter{w: out},
		errOut:  &lockedWriter{w: errOut},
	}
	return sh.run(ctx)
}

type shell struct {
	cfg     *config.Config
	vm      *viewmodel.Model
	scanner *bufio.Scanner
	out     *lockedWriter
	errOut  *lockedWriter

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

func (sh *shell) run(ctx context.Context) int {
	// Confirmation answers come from the same stream as commands.
	sh.vm.SetConfirmer(viewmodel.LineConfirmer(sh.scanner, sh.out))
	sh.vm.SetObserver(dashboardObserver(sh.out, sh.errOut, sh.vm, sh.cfg.Quiet))
	defer sh.vm.SetObserver(nil)
	defer sh.unwatch()

	if sh.vm.View() == viewmodel.ViewDashboard {
		sh.enterDashboard(ctx)
	} else if !sh.cfg.Quiet {
		fmt.Fprintln(sh.out, "not logged in: type login <email> or register <email> <name>")
	}

	for ctx.Err() == nil {
		sh.prompt()
		if !sh.scanner.Scan() {
			fmt.Fprintln(sh.out)
			break
		}
		fields := strings.Fields(sh.scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if quit := sh.exec(ctx, fields[0], fields[1:]); quit {
			break
		}
	}
	return exitcode.Success
}

func (sh *shell) prompt() {
	if sh.vm.View() == viewmodel.ViewDashboard {
		fmt.Fprint(sh.out, "taskdash> ")
		return
	}
	fmt.Fprint(sh.out, "login> ")
}

// exec runs one line and reports whether the shell should exit.
func (sh *shell) exec(ctx context.Context, name string, args []string) bool {
	switch name {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		sh.help()
		return false
	}

	if sh.vm.View() == viewmodel.ViewAuthForm {
		switch name {
		case "login":
			sh.login(ctx, args)
		case "register", "signup":
			sh.register(ctx, args)
		default:
			fmt.Fprintf(sh.errOut, "error: not logged in: %s is unavailable\n", name)
		}
		return false
	}

	switch name {
	case "ls", "list", "refresh":
		if _, err := sh.vm.ListTasks(ctx); err != nil {
			reportError(sh.errOut, err)
		}
	case "add", "create":
		runAdd(ctx, sh.cfg, sh.vm, "", args, sh.out, sh.errOut)
	case "rm", "delete":
		ref, err := ParseTaskRef(args, false)
		if err != nil {
			fmt.Fprintf(sh.errOut, "error: %v\n", err)
			return false
		}
		deleteRef(ctx, sh.cfg, sh.vm, ref, sh.out, sh.errOut)
	case "whoami":
		printUser(sh.out, sh.vm)
	case "logout":
		sh.unwatch()
		if err := sh.vm.Logout(ctx); err != nil && !errors.Is(err, session.ErrNoSession) {
			fmt.Fprintf(sh.errOut, "error: failed to remove session: %v\n", err)
			return false
		}
		if !sh.cfg.Quiet {
			fmt.Fprintln(sh.out, "ok")
		}
	case "login", "register":
		fmt.Fprintln(sh.errOut, "error: already logged in (logout first)")
	default:
		fmt.Fprintf(sh.errOut, "error: unknown command: %s\n", name)
	}
	return false
}

func (sh *shell) login(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(sh.errOut, "error: usage: login <email>")
		return
	}
	password, ok := sh.readLine("Password: ")
	if !ok {
		return
	}
	if err := sh.vm.Login(ctx, args[0], password); err != nil {
		if errors.Is(err, viewmodel.ErrLoginFailed) {
			fmt.Fprintf(sh.errOut, "error: %v\n", err)
			return
		}
		reportError(sh.errOut, err)
		return
	}
	if !sh.cfg.Quiet {
		fmt.Fprintln(sh.out, "ok")
	}
	sh.enterDashboard(ctx)
}

func (sh *shell) register(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(sh.errOut, "error: usage: register <email> <name...>")
		return
	}
	password, ok := sh.readLine("Password: ")
	if !ok {
		return
	}
	err := sh.vm.Register(ctx, strings.Join(args[1:], " "), args[0], password)
	if err != nil {
		fmt.Fprintf(sh.errOut, "error: %v\n", err)
		return
	}
	if !sh.cfg.Quiet {
		fmt.Fprintf(sh.out, "ok, now type: login %s\n", args[0])
	}
}

func (sh *shell) readLine(prompt string) (string, bool) {
	fmt.Fprint(sh.out, prompt)
	if !sh.scanner.Scan() {
		fmt.Fprintln(sh.out)
		return "", false
	}
	return strings.TrimRight(sh.scanner.Text(), "\r"), true
}

// enterDashboard renders the list and starts following pushes.
func (sh *shell) enterDashboard(ctx context.Context) {
	if _, err := sh.vm.ListTasks(ctx); err != nil {
		reportError(sh.errOut, err)
	}
	sh.watch(ctx)
}

func (sh *shell) watch(ctx context.Context) {
	sh.unwatch()
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sh.stopWatch, sh.watchDone = cancel, done

	go func() {
		defer close(done)
		err := sh.vm.Subscribe(wctx)
		if err != nil && wctx.Err() == nil {
			fmt.Fprintf(sh.errOut, "error: live updates stopped: %v\n", err)
		}
	}()
}

func (sh *shell) unwatch() {
	if sh.stopWatch == nil {
		return
	}
	sh.stopWatch()
	<-sh.watchDone
	sh.stopWatch, sh.watchDone = nil, nil
}

func (sh *shell) help() {
	if sh.vm.View() == viewmodel.ViewAuthForm {
		fmt.Fprint(sh.out, authHelpText)
		return
	}
	fmt.Fprint(sh.out, dashboardHelpText)
}

const authHelpText = `  login <email>              Log in (prompts for the password)
  register <email> <name...> Create an account
  quit                       Leave the shell
`

const dashboardHelpText = `  ls                Reprint the task list
  add <title...>    Create a task in your team
  rm <n|id>         Delete a task (admins)
  whoami            Show the logged-in user
  logout            Log out
  quit              Leave the shell
`
