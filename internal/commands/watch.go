package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sync"

	"taskdash/internal/config"
	"taskdash/internal/exitcode"
	"taskdash/internal/output"
	"taskdash/internal/service"
	"taskdash/internal/viewmodel"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd prints the dashboard and reprints it on every taskCreated push
// until interrupted.
type WatchCmd struct{}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string  { return "Follow new tasks live" }
func (c *WatchCmd) Usage() string     { return "taskdash watch [common flags]" }
func (c *WatchCmd) NeedsAuth() bool   { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, vm *viewmodel.Model, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	w := &lockedWriter{w: out}
	vm.SetObserver(dashboardObserver(w, errOut, vm, cfg.Quiet))
	defer vm.SetObserver(nil)

	// The initial fetch renders through the observer.
	if _, err := vm.ListTasks(ctx); err != nil {
		return reportError(errOut, err)
	}

	err := vm.Subscribe(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return exitcode.Success
	}
	return reportError(errOut, err)
}

// dashboardObserver renders pushes and refreshed lists to w.
func dashboardObserver(w *lockedWriter, errOut io.Writer, vm *viewmodel.Model, quiet bool) viewmodel.Observer {
	return viewmodel.ObserverFuncs{
		OnTaskCreated: func(task service.Task) {
			w.do(func(w io.Writer) { output.FormatNotification(w, task) })
		},
		OnRefreshed: func(tasks []service.Task) {
			w.do(func(w io.Writer) { renderDashboard(w, vm.User(), tasks, vm.CanDelete(), quiet) })
		},
		OnRefreshFailed: func(err error) {
			w.do(func(io.Writer) { fmt.Fprintf(errOut, "error: refresh failed: %v\n", err) })
		},
	}
}

// lockedWriter serializes output from the subscription goroutine and the
// foreground.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// do runs fn with the lock held so multi-line output stays together.
func (l *lockedWriter) do(fn func(io.Writer)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.w)
}
