package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"taskdash/internal/service"
	"taskdash/internal/viewmodel"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num int    // 1-based dashboard position, 0 when ID is set
	ID  string // task ID, empty when Num is set
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// RefError reports a reference that matches no task in the current list.
type RefError struct {
	msg string
}

func (e *RefError) Error() string { return e.msg }

// ParseTaskRef parses a task reference from args.
//
// Parsing rules:
// 1. No args → error: task reference required
// 2. More than one arg → error: too many arguments
// 3. All digits, byID false → dashboard position (as printed by list)
// 4. Anything else, or byID true → task ID
func ParseTaskRef(args []string, byID bool) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return TaskRef{}, fmt.Errorf("too many arguments: %s", strings.Join(args[1:], " "))
	}

	arg := strings.TrimSpace(args[0])
	if arg == "" {
		return TaskRef{}, ErrTaskRefRequired
	}
	if byID || !isAllDigits(arg) {
		return TaskRef{ID: arg}, nil
	}

	num, err := strconv.Atoi(arg)
	if err != nil {
		return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
	}
	return TaskRef{Num: num}, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ResolveTaskRef returns the referenced task. The list already on screen is
// used when there is one, so positions match what the user saw; otherwise it
// is fetched. Positions count from 1 in server order.
func ResolveTaskRef(ctx context.Context, vm *viewmodel.Model, ref TaskRef) (service.Task, error) {
	tasks := vm.Tasks()
	if !vm.State().Fetched {
		var err error
		if tasks, err = vm.ListTasks(ctx); err != nil {
			return service.Task{}, err
		}
	}

	if ref.ID != "" {
		for _, t := range tasks {
			if t.ID == ref.ID {
				return t, nil
			}
		}
		return service.Task{}, &RefError{msg: "task not found: " + ref.ID}
	}

	if ref.Num < 1 || ref.Num > len(tasks) {
		return service.Task{}, &RefError{msg: fmt.Sprintf("task number out of range: %d", ref.Num)}
	}
	return tasks[ref.Num-1], nil
}
