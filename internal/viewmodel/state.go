package viewmodel

import (
	"taskdash/internal/service"
	"taskdash/internal/session"
)

// View is the screen the state calls for.
type View int

const (
	// ViewAuthForm is shown while there is no token.
	ViewAuthForm View = iota

	// ViewDashboard is shown once a token is held.
	ViewDashboard
)

func (v View) String() string {
	if v == ViewDashboard {
		return "dashboard"
	}
	return "auth"
}

// FormMode selects between the login and register forms.
type FormMode string

const (
	ModeLogin    FormMode = "login"
	ModeRegister FormMode = "register"
)

// AuthForm holds the auth form fields. The password is never serialized.
type AuthForm struct {
	Mode     FormMode `json:"mode"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Password string   `json:"-"`
}

// State is everything a screen renders from.
type State struct {
	Session      *session.Session `json:"session,omitempty"`
	Form         AuthForm         `json:"form"`
	NewTaskTitle string           `json:"newTaskTitle,omitempty"`
	Tasks        []service.Task   `json:"tasks,omitempty"`
	Loading      bool             `json:"loading"`
	Fetched      bool             `json:"fetched"`
}

func (s *State) authenticated() bool {
	return s.Session != nil && s.Session.Token != ""
}

// View returns ViewDashboard when a token is held, ViewAuthForm otherwise.
func (s State) View() View {
	if s.authenticated() {
		return ViewDashboard
	}
	return ViewAuthForm
}

// CanDelete reports whether the delete affordance is offered: only to a
// cached user with the admin role. This is presentation only; the server
// decides whether a delete is allowed.
func (s State) CanDelete() bool {
	return s.Session != nil && s.Session.User != nil && s.Session.User.IsAdmin()
}

// State returns a copy of the current state.
func (m *Model) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state
	st.Tasks = cloneTasks(m.state.Tasks)
	if m.state.Session != nil {
		sess := *m.state.Session
		if sess.User != nil {
			user := *sess.User
			sess.User = &user
		}
		st.Session = &sess
	}
	return st
}

// View returns the screen for the current state.
func (m *Model) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.View()
}

// CanDelete reports whether the delete affordance is shown.
func (m *Model) CanDelete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CanDelete()
}

// User returns the cached user, or nil when logged out.
func (m *Model) User() *service.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Session == nil || m.state.Session.User == nil {
		return nil
	}
	user := *m.state.Session.User
	return &user
}

// Token returns the held bearer token, or "" when logged out.
func (m *Model) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Session == nil {
		return ""
	}
	return m.state.Session.Token
}

// Tasks returns the last fetched task snapshot.
func (m *Model) Tasks() []service.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneTasks(m.state.Tasks)
}

// Loading reports whether a task fetch is in flight.
func (m *Model) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Loading
}

// Team returns the team new tasks are created in.
func (m *Model) Team() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teamLocked()
}
