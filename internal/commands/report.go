package commands

import (
	"errors"
	"fmt"
	"io"

	"taskdash/internal/exitcode"
	"taskdash/internal/service"
)

// reportError prints a failed remote call and returns its exit code.
// Server messages are passed through unchanged.
func reportError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, service.ErrTimeout):
		fmt.Fprintln(errOut, "error: backend error: request timed out")
		return exitcode.BackendError
	}
	fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	return exitcode.BackendError
}
