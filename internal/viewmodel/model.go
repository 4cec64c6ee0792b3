// Package viewmodel holds the session and task state behind every taskdash
// screen and command.
//
// A Model owns one State value. Every transition (restore, login, register,
// logout, refetch, create, delete, push) is a method; nothing is reset by
// restarting the process. The data client is rebuilt whenever the
// credential changes.
package viewmodel

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"taskdash/internal/service"
	"taskdash/internal/session"
)

// DefaultTeam is the team used for new tasks when the user has none.
const DefaultTeam = "team-A"

var (
	// ErrLoginFailed is returned when the server rejects the credentials.
	ErrLoginFailed = errors.New("login failed: check email/password")

	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not logged in")

	// ErrIncompleteProfile is returned when a login response carries no
	// user id or role and the token has no claims to fill them.
	ErrIncompleteProfile = errors.New("login response has no user id or role")
)

// RegisterError carries the reason a registration was refused.
type RegisterError struct {
	Message string
	Err     error
}

func (e *RegisterError) Error() string { return "registration failed: " + e.Message }
func (e *RegisterError) Unwrap() error { return e.Err }

// ClientFactory builds a data client for a bearer token. An empty token
// yields an anonymous client that can only log in and register.
type ClientFactory func(ctx context.Context, token string) (service.Service, error)

// SessionStore is the durable side of the session.
type SessionStore interface {
	Load() (*session.Session, error)
	Save(sess *session.Session) error
	Clear() error
}

// Model is the session and task view-model. It is safe for concurrent use:
// the push subscription and user actions may call it at the same time.
type Model struct {
	mu     sync.Mutex
	state  State
	client service.Service
	gen    uint64 // refetch generation; stale results are dropped

	store       SessionStore
	newClient   ClientFactory
	confirm     Confirmer
	observer    Observer
	defaultTeam string
	log         zerolog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithConfirmer sets the confirmation used before deletes.
func WithConfirmer(c Confirmer) Option {
	return func(m *Model) { m.confirm = c }
}

// WithObserver sets the receiver of push and refresh events.
func WithObserver(o Observer) Option {
	return func(m *Model) { m.observer = o }
}

// WithDefaultTeam overrides DefaultTeam.
func WithDefaultTeam(team string) Option {
	return func(m *Model) {
		if team != "" {
			m.defaultTeam = team
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Model) { m.log = log }
}

// New creates a Model with an empty, logged-out state. Call RestoreSession
// to pick up a stored session.
func New(store SessionStore, newClient ClientFactory, opts ...Option) *Model {
	m := &Model{
		state:       State{Form: AuthForm{Mode: ModeLogin}},
		store:       store,
		newClient:   newClient,
		confirm:     DenyAll,
		observer:    nopObserver{},
		defaultTeam: DefaultTeam,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetConfirmer replaces the delete confirmation.
func (m *Model) SetConfirmer(c Confirmer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirm = c
}

// SetObserver replaces the event observer. Nil disables events.
func (m *Model) SetObserver(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o == nil {
		o = nopObserver{}
	}
	m.observer = o
}

// RestoreSession loads the stored session, if any, and rebuilds the data
// client with its token. A missing session is not an error.
func (m *Model) RestoreSession(ctx context.Context) error {
	sess, err := m.store.Load()
	if err != nil {
		m.log.Debug().Err(err).Msg("session not restored")
		if rerr := m.reinit(ctx, nil); rerr != nil {
			return rerr
		}
		return err
	}
	if sess != nil && !sess.Complete() {
		m.log.Debug().Msg("stored session has no usable user")
		if rerr := m.reinit(ctx, nil); rerr != nil {
			return rerr
		}
		return session.ErrIncomplete
	}
	if sess == nil {
		m.log.Debug().Msg("no stored session")
	} else {
		m.log.Debug().Str("user", sess.User.ID).Str("role", string(sess.User.Role)).Msg("session restored")
	}
	return m.reinit(ctx, sess)
}

// reinit swaps the data client for one carrying the session's credential
// and installs the session in memory. It is the only place the client
// changes.
func (m *Model) reinit(ctx context.Context, sess *session.Session) error {
	token := ""
	if sess != nil {
		token = sess.Token
	}
	client, err := m.newClient(ctx, token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
	m.gen++
	m.state.Session = sess
	m.state.Tasks = nil
	m.state.Fetched = false
	m.state.Loading = false
	return nil
}

// Login submits the credentials. On success the token and user are stored
// together and the data client is rebuilt with the new token. A user
// without an id or role is taken from the token's claims instead. On failure
// nothing is stored and the form keeps its values.
func (m *Model) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	m.state.Form.Email = email
	m.state.Form.Password = password
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return ErrNotAuthenticated
	}
	auth, err := client.Login(ctx, email, password)
	if err != nil {
		m.log.Debug().Err(err).Msg("login rejected")
		if errors.Is(err, service.ErrUnauthorized) || service.Message(err, "") != "" {
			return ErrLoginFailed
		}
		return err
	}

	user := auth.User
	sess := &session.Session{Token: auth.Token, User: &user}
	if !sess.Complete() {
		claimed, ok := session.UserFromToken(auth.Token)
		if !ok {
			return ErrIncompleteProfile
		}
		sess.User = &claimed
	}
	if err := m.store.Save(sess); err != nil {
		return err
	}
	m.log.Debug().Str("user", sess.User.ID).Str("role", string(sess.User.Role)).Msg("logged in")
	return m.reinit(ctx, sess)
}

// Register creates an account. On success the form switches back to login
// mode with the password cleared.
func (m *Model) Register(ctx context.Context, name, email, password string) error {
	m.mu.Lock()
	m.state.Form.Mode = ModeRegister
	m.state.Form.Name = name
	m.state.Form.Email = email
	m.state.Form.Password = password
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return ErrNotAuthenticated
	}
	if err := client.Register(ctx, name, email, password); err != nil {
		return &RegisterError{Message: service.Message(err, "unknown error"), Err: err}
	}

	m.mu.Lock()
	m.state.Form.Mode = ModeLogin
	m.state.Form.Password = ""
	m.mu.Unlock()
	return nil
}

// Logout clears the stored session and drops the credential from memory and
// from the data client. It returns session.ErrNoSession when nothing was
// stored; the in-memory state is reset either way.
func (m *Model) Logout(ctx context.Context) error {
	clearErr := m.store.Clear()
	if clearErr != nil && !errors.Is(clearErr, session.ErrNoSession) {
		return clearErr
	}

	m.mu.Lock()
	m.state.Form = AuthForm{Mode: ModeLogin}
	m.state.NewTaskTitle = ""
	m.mu.Unlock()

	if err := m.reinit(ctx, nil); err != nil {
		return err
	}
	m.log.Debug().Msg("logged out")
	return clearErr
}

// ListTasks fetches the task list into the snapshot and returns it. Without
// a token no request is made and the result is empty.
func (m *Model) ListTasks(ctx context.Context) ([]service.Task, error) {
	m.mu.Lock()
	if !m.state.authenticated() {
		m.mu.Unlock()
		return nil, nil
	}
	m.gen++
	gen := m.gen
	client := m.client
	m.state.Loading = true
	m.mu.Unlock()

	tasks, err := client.ListTasks(ctx)

	m.mu.Lock()
	if gen != m.gen {
		// A newer refetch or a credential change superseded this one.
		m.mu.Unlock()
		return cloneTasks(tasks), err
	}
	m.state.Loading = false
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.state.Tasks = cloneTasks(tasks)
	m.state.Fetched = true
	observer := m.observer
	m.mu.Unlock()

	observer.TasksRefreshed(cloneTasks(tasks))
	return cloneTasks(tasks), nil
}

// CreateTask creates a task in the user's team, or the default team when
// the team is unknown. An empty title is a no-op. The title field is
// cleared on success. The list is not refetched here; the taskCreated push
// does that.
func (m *Model) CreateTask(ctx context.Context, title string) (*service.Task, error) {
	return m.CreateTaskInTeam(ctx, title, "")
}

// CreateTaskInTeam is CreateTask with an explicit team. An empty team falls
// back to the resolved team.
func (m *Model) CreateTaskInTeam(ctx context.Context, title, team string) (*service.Task, error) {
	m.mu.Lock()
	m.state.NewTaskTitle = title
	if strings.TrimSpace(title) == "" {
		m.mu.Unlock()
		return nil, nil
	}
	if team == "" {
		team = m.teamLocked()
	}
	if !m.state.authenticated() {
		m.mu.Unlock()
		return nil, ErrNotAuthenticated
	}
	client := m.client
	m.mu.Unlock()

	task, err := client.CreateTask(ctx, title, team)
	if err != nil {
		m.log.Debug().Err(err).Msg("create task failed")
		return nil, err
	}

	m.mu.Lock()
	if m.state.NewTaskTitle == title {
		m.state.NewTaskTitle = ""
	}
	m.mu.Unlock()
	return &task, nil
}

// DeleteTask asks for confirmation and deletes the task. Declining sends
// nothing and returns false. A successful delete is followed by exactly one
// refetch. Server errors, including authorization refusals, are returned
// unchanged.
func (m *Model) DeleteTask(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	if !m.state.authenticated() {
		m.mu.Unlock()
		return false, ErrNotAuthenticated
	}
	confirm := m.confirm
	client := m.client
	prompt := "Delete this task? (admins only)"
	for _, t := range m.state.Tasks {
		if t.ID == id {
			prompt = "Delete \"" + t.Title + "\"? (admins only)"
			break
		}
	}
	m.mu.Unlock()

	if !confirm.Confirm(prompt) {
		return false, nil
	}
	if err := client.DeleteTask(ctx, id); err != nil {
		m.log.Debug().Err(err).Str("task", id).Msg("delete task failed")
		return false, err
	}
	_, err := m.ListTasks(ctx)
	return true, err
}

// OnTaskCreatedPush handles one taskCreated event: notify, then refetch.
// Events are not deduplicated.
func (m *Model) OnTaskCreatedPush(ctx context.Context, task service.Task) error {
	m.mu.Lock()
	observer := m.observer
	m.mu.Unlock()

	observer.TaskCreated(task)
	_, err := m.ListTasks(ctx)
	return err
}

// Subscribe follows the taskCreated stream until ctx is cancelled or the
// stream ends, handling each event with OnTaskCreatedPush. Refetch errors
// are reported to the observer and do not end the subscription.
func (m *Model) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	if !m.state.authenticated() {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	client := m.client
	m.mu.Unlock()

	return client.SubscribeTaskCreated(ctx, func(task service.Task) {
		if err := m.OnTaskCreatedPush(ctx, task); err != nil {
			m.log.Debug().Err(err).Msg("refetch after push failed")
			m.mu.Lock()
			observer := m.observer
			m.mu.Unlock()
			observer.RefreshFailed(err)
		}
	})
}

func (m *Model) teamLocked() string {
	if s := m.state.Session; s != nil && s.User != nil && s.User.TeamID != "" {
		return s.User.TeamID
	}
	return m.defaultTeam
}

func cloneTasks(tasks []service.Task) []service.Task {
	if tasks == nil {
		return nil
	}
	out := make([]service.Task, len(tasks))
	copy(out, tasks)
	return out
}
