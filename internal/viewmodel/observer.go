package viewmodel

import "taskdash/internal/service"

// Observer receives view-model events. Calls may arrive on the subscription
// goroutine, concurrently with user actions.
type Observer interface {
	// TaskCreated is called for every taskCreated push, before the refetch.
	TaskCreated(task service.Task)

	// TasksRefreshed is called after each successful fetch.
	TasksRefreshed(tasks []service.Task)

	// RefreshFailed is called when a push-triggered refetch fails.
	RefreshFailed(err error)
}

type nopObserver struct{}

func (nopObserver) TaskCreated(service.Task)      {}
func (nopObserver) TasksRefreshed([]service.Task) {}
func (nopObserver) RefreshFailed(error)           {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnTaskCreated   func(service.Task)
	OnRefreshed     func([]service.Task)
	OnRefreshFailed func(error)
}

func (o ObserverFuncs) TaskCreated(task service.Task) {
	if o.OnTaskCreated != nil {
		o.OnTaskCreated(task)
	}
}

func (o ObserverFuncs) TasksRefreshed(tasks []service.Task) {
	if o.OnRefreshed != nil {
		o.OnRefreshed(tasks)
	}
}

func (o ObserverFuncs) RefreshFailed(err error) {
	if o.OnRefreshFailed != nil {
		o.OnRefreshFailed(err)
	}
}
