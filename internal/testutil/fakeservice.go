// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"taskdash/internal/service"
)

// Operation names used by FakeService.Calls.
const (
	OpLogin     = "login"
	OpRegister  = "register"
	OpList      = "tasks"
	OpCreate    = "createTask"
	OpDelete    = "deleteTask"
	OpSubscribe = "taskCreated"
)

// CreateCall records the arguments of one CreateTask call.
type CreateCall struct {
	Title  string
	TeamID string
}

type fakeAccount struct {
	password string
	auth     service.Auth
}

// FakeService is an in-memory implementation of service.Service for testing.
// One instance stands in for every client built by Connect; the last token
// passed to Connect is the credential in effect.
type FakeService struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount // email -> account
	tasks    []service.Task
	nextID   int
	token    string
	tokens   []string
	calls    map[string]int
	created  []CreateCall
	deleted  []string
	subs     map[int]func(service.Task)
	nextSub  int

	subscribed chan struct{}

	// Error injection for testing
	ConnectErr   error
	LoginErr     error
	RegisterErr  error
	ListTasksErr error
	CreateErr    error
	DeleteErr    error
	SubscribeErr error
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		accounts:   make(map[string]fakeAccount),
		calls:      make(map[string]int),
		subs:       make(map[int]func(service.Task)),
		subscribed: make(chan struct{}, 16),
	}
}

// AddUser registers an account and returns the token Login will issue for it.
func (f *FakeService) AddUser(email, password string, user service.User) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.Email == "" {
		user.Email = email
	}
	token := "token-" + user.ID
	f.accounts[email] = fakeAccount{password: password, auth: service.Auth{Token: token, User: user}}
	return token
}

// AddTask adds a task to the list.
func (f *FakeService) AddTask(id, title, teamID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, service.Task{ID: id, Title: title, Status: "todo", TeamID: teamID})
}

// Connect is a viewmodel.ClientFactory. It records the token and returns f.
func (f *FakeService) Connect(ctx context.Context, token string) (service.Service, error) {
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.tokens = append(f.tokens, token)
	return f, nil
}

// Tokens returns every token passed to Connect, in order.
func (f *FakeService) Tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

// Calls returns how many times the operation was invoked.
func (f *FakeService) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Created returns the recorded CreateTask calls.
func (f *FakeService) Created() []CreateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreateCall(nil), f.created...)
}

// Deleted returns the IDs passed to successful DeleteTask calls.
func (f *FakeService) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// Subscribed is signalled each time SubscribeTaskCreated registers a listener.
func (f *FakeService) Subscribed() <-chan struct{} {
	return f.subscribed
}

// Push adds a task, as if created by someone else, and delivers a
// taskCreated event to every subscriber.
func (f *FakeService) Push(task service.Task) {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	subs := make([]func(service.Task), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	pushed := service.Task{ID: task.ID, Title: task.Title, Status: task.Status}
	for _, fn := range subs {
		fn(pushed)
	}
}

// authorized accepts any non-empty token, including ones minted outside
// AddUser.
func (f *FakeService) authorized() bool {
	return f.token != ""
}

func (f *FakeService) user() (service.User, bool) {
	for _, acct := range f.accounts {
		if acct.auth.Token == f.token {
			return acct.auth.User, true
		}
	}
	return service.User{}, false
}

// Login implements service.Service.
func (f *FakeService) Login(ctx context.Context, email, password string) (service.Auth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpLogin]++
	if f.LoginErr != nil {
		return service.Auth{}, f.LoginErr
	}
	acct, ok := f.accounts[email]
	if !ok || acct.password != password {
		return service.Auth{}, &service.APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	}
	return acct.auth, nil
}

// Register implements service.Service.
func (f *FakeService) Register(ctx context.Context, name, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpRegister]++
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	if _, exists := f.accounts[email]; exists {
		return &service.APIError{Status: http.StatusConflict, Message: "email already registered"}
	}
	f.nextID++
	id := fmt.Sprintf("u%d", f.nextID)
	f.accounts[email] = fakeAccount{
		password: password,
		auth: service.Auth{
			Token: "token-" + id,
			User:  service.User{ID: id, Name: name, Email: email, Role: service.RoleMember},
		},
	}
	return nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpList]++
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	if !f.authorized() {
		return nil, service.ErrUnauthorized
	}
	return append([]service.Task(nil), f.tasks...), nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, title, teamID string) (service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpCreate]++
	f.created = append(f.created, CreateCall{Title: title, TeamID: teamID})
	if f.CreateErr != nil {
		return service.Task{}, f.CreateErr
	}
	if !f.authorized() {
		return service.Task{}, service.ErrUnauthorized
	}
	f.nextID++
	task := service.Task{ID: fmt.Sprintf("t%d", f.nextID), Title: title, Status: "todo", TeamID: teamID}
	f.tasks = append(f.tasks, task)
	return task, nil
}

// DeleteTask implements service.Service. Only users added with the admin
// role may delete, mirroring the server-side check.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[OpDelete]++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if !f.authorized() {
		return service.ErrUnauthorized
	}
	if user, ok := f.user(); ok && !user.IsAdmin() {
		return &service.APIError{Status: http.StatusForbidden, Message: "Unauthorized: admin only"}
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return service.ErrNotFound
}

// SubscribeTaskCreated implements service.Service. It blocks until ctx is
// cancelled.
func (f *FakeService) SubscribeTaskCreated(ctx context.Context, fn func(service.Task)) error {
	f.mu.Lock()
	f.calls[OpSubscribe]++
	if f.SubscribeErr != nil {
		f.mu.Unlock()
		return f.SubscribeErr
	}
	f.nextSub++
	id := f.nextSub
	f.subs[id] = fn
	f.mu.Unlock()

	select {
	case f.subscribed <- struct{}{}:
	default:
	}

	<-ctx.Done()

	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
	return ctx.Err()
}
