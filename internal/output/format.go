// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskdash/internal/service"
)

const (
	// Separator frames the dashboard header.
	Separator = "------------"

	// DeleteMarker flags rows the user is offered a delete for.
	DeleteMarker = "[rm]"
)

// FormatHeader formats the dashboard header with the user's name and role.
// A nil user prints "role: unknown".
func FormatHeader(w io.Writer, user *service.User) {
	name, role := "(unknown)", "unknown"
	if user != nil {
		if strings.TrimSpace(user.Name) != "" {
			name = user.Name
		} else if user.Email != "" {
			name = user.Email
		}
		if user.Role != "" {
			role = string(user.Role)
		}
	}
	fmt.Fprintln(w, Separator)
	fmt.Fprintf(w, "Tasks for %s (role: %s)\n", name, role)
	fmt.Fprintln(w, Separator)
}

// FormatTask formats one dashboard row.
// Format: "{N:>4}  {TITLE}  ({STATUS}, team {TEAM})" plus " [rm]" when
// canDelete is set.
func FormatTask(w io.Writer, num int, task service.Task, canDelete bool) {
	line := fmt.Sprintf("%4d  %s  (%s, team %s)", num, normalizeTitle(task.Title), orDash(task.Status), orDash(task.TeamID))
	if canDelete {
		line += " " + DeleteMarker
	}
	fmt.Fprintln(w, line)
}

// FormatTasks formats every task, numbered from 1.
func FormatTasks(w io.Writer, tasks []service.Task, canDelete bool) {
	for i, task := range tasks {
		FormatTask(w, i+1, task, canDelete)
	}
}

// FormatNotification formats a taskCreated push.
func FormatNotification(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "new task created: %s\n", normalizeTitle(task.Title))
}

// FormatUser formats the profile for whoami. A zero expiry is omitted.
func FormatUser(w io.Writer, user service.User, expires time.Time) {
	fmt.Fprintf(w, "name:  %s\n", orDash(user.Name))
	fmt.Fprintf(w, "email: %s\n", orDash(user.Email))
	fmt.Fprintf(w, "role:  %s\n", orDash(string(user.Role)))
	fmt.Fprintf(w, "team:  %s\n", orDash(user.TeamID))
	if !expires.IsZero() {
		fmt.Fprintf(w, "token expires: %s\n", expires.UTC().Format(time.RFC3339))
	}
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
