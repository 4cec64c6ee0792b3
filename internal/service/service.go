// Package service defines the backend-agnostic interface to the task service.
package service

import "context"

// Service defines the remote operations the view-model depends on.
// Commands never talk to the gateway directly.
type Service interface {
	// Login exchanges credentials for a bearer token and the user profile.
	Login(ctx context.Context, email, password string) (Auth, error)

	// Register creates a new account. It does not log in.
	Register(ctx context.Context, name, email, password string) error

	// ListTasks returns the tasks visible to the caller in server order.
	ListTasks(ctx context.Context) ([]Task, error)

	// CreateTask creates a task in the given team.
	CreateTask(ctx context.Context, title, teamID string) (Task, error)

	// DeleteTask deletes a task by ID. Authorization is decided by the server.
	DeleteTask(ctx context.Context, id string) error

	// SubscribeTaskCreated blocks, calling fn for every taskCreated event,
	// until ctx is cancelled or the server ends the stream.
	SubscribeTaskCreated(ctx context.Context, fn func(Task)) error
}
