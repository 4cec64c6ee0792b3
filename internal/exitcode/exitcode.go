// Package exitcode defines process exit codes for taskdash.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, unknown task, non-admin delete).
	UserError = 1

	// AuthError indicates a login, session or config error.
	AuthError = 2

	// BackendError indicates a task API or network error.
	BackendError = 3
)
