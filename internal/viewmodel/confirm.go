package viewmodel

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

var (
	// AlwaysConfirm approves every prompt.
	AlwaysConfirm Confirmer = ConfirmFunc(func(string) bool { return true })

	// DenyAll declines every prompt. It is the default, so nothing is
	// deleted without a confirmer being wired in.
	DenyAll Confirmer = ConfirmFunc(func(string) bool { return false })
)

// PromptConfirmer writes the prompt to out and reads a y/yes answer from in.
// A nil reader declines.
func PromptConfirmer(in io.Reader, out io.Writer) Confirmer {
	if in == nil {
		return DenyAll
	}
	return LineConfirmer(bufio.NewScanner(in), out)
}

// LineConfirmer is PromptConfirmer over an existing scanner, for callers
// that read other input from the same stream.
func LineConfirmer(scanner *bufio.Scanner, out io.Writer) Confirmer {
	return ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "y", "yes":
			return true
		}
		return false
	})
}
