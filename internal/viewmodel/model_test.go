package viewmodel_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/service"
	"taskdash/internal/session"
	"taskdash/internal/testutil"
	"taskdash/internal/viewmodel"
)

var (
	alice = service.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: service.RoleAdmin, TeamID: "team-B"}
	bob   = service.User{ID: "u2", Name: "Bob", Email: "bob@example.com", Role: service.RoleMember}
)

type fixture struct {
	svc   *testutil.FakeService
	store *session.Store
	vm    *viewmodel.Model
}

func newFixture(t *testing.T, opts ...viewmodel.Option) *fixture {
	t.Helper()
	svc := testutil.NewFakeService()
	svc.AddUser(alice.Email, "alice-pw", alice)
	svc.AddUser(bob.Email, "bob-pw", bob)
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	return &fixture{svc: svc, store: store, vm: viewmodel.New(store, svc.Connect, opts...)}
}

// loggedIn stores a session for user and restores it.
func (f *fixture) loggedIn(t *testing.T, user service.User) {
	t.Helper()
	u := user
	require.NoError(t, f.store.Save(&session.Session{Token: "token-" + user.ID, User: &u}))
	require.NoError(t, f.vm.RestoreSession(context.Background()))
}

type recordingObserver struct {
	mu        sync.Mutex
	created   []service.Task
	refreshed int
	failures  []error
}

func (o *recordingObserver) TaskCreated(task service.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, task)
}

func (o *recordingObserver) TasksRefreshed([]service.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshed++
}

func (o *recordingObserver) RefreshFailed(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, err)
}

func (o *recordingObserver) createdCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.created)
}

func TestRestoreSession_NoStoredToken(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.vm.RestoreSession(context.Background()))
	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View())
	require.Nil(t, f.vm.User())
	require.Equal(t, []string{""}, f.svc.Tokens())

	tasks, err := f.vm.ListTasks(context.Background())
	require.NoError(t, err)
	require.Empty(t, tasks)
	require.Zero(t, f.svc.Calls(testutil.OpList), "no task query without a token")
}

func TestRestoreSession_StoredSession(t *testing.T) {
	f := newFixture(t)
	f.svc.AddTask("t1", "Buy milk", "team-B")
	f.loggedIn(t, alice)

	require.Equal(t, viewmodel.ViewDashboard, f.vm.View())
	require.Equal(t, &alice, f.vm.User())
	require.Equal(t, []string{"token-u1"}, f.svc.Tokens())
	require.Zero(t, f.svc.Calls(testutil.OpList), "restore itself sends nothing")

	tasks, err := f.vm.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, 1, f.svc.Calls(testutil.OpList))

	st := f.vm.State()
	require.True(t, st.Fetched)
	require.False(t, st.Loading)
	require.Equal(t, tasks, st.Tasks)
}

func TestRestoreSession_Incomplete(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.store.Path(), []byte(`{"token":"opaque"}`), 0600))

	err := f.vm.RestoreSession(context.Background())
	require.ErrorIs(t, err, session.ErrIncomplete)
	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View())
	require.Equal(t, []string{""}, f.svc.Tokens(), "client rebuilt without the token")
}

func TestRestoreSession_UserWithoutRole(t *testing.T) {
	f := newFixture(t)
	f.svc.AddTask("t1", "Buy milk", "team-A")
	require.NoError(t, os.WriteFile(f.store.Path(), []byte(`{"token":"token-u9","user":{"id":"u9"}}`), 0600))

	err := f.vm.RestoreSession(context.Background())
	require.ErrorIs(t, err, session.ErrIncomplete)
	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View())
	require.Nil(t, f.vm.User())

	tasks, err := f.vm.ListTasks(context.Background())
	require.NoError(t, err)
	require.Empty(t, tasks)
	require.Zero(t, f.svc.Calls(testutil.OpList))
}

func TestRestoreSession_ClientError(t *testing.T) {
	f := newFixture(t)
	f.svc.ConnectErr = errors.New("dial failed")

	require.EqualError(t, f.vm.RestoreSession(context.Background()), "dial failed")
	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View())
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vm.RestoreSession(context.Background()))

	require.NoError(t, f.vm.Login(context.Background(), alice.Email, "alice-pw"))

	require.Equal(t, viewmodel.ViewDashboard, f.vm.View())
	require.Equal(t, "token-u1", f.vm.Token())
	require.Equal(t, []string{"", "token-u1"}, f.svc.Tokens(), "client rebuilt with the new token")

	sess, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, "token-u1", sess.Token)
	require.Equal(t, &alice, sess.User, "token and user stored together")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vm.RestoreSession(context.Background()))

	err := f.vm.Login(context.Background(), alice.Email, "wrong")
	require.ErrorIs(t, err, viewmodel.ErrLoginFailed)

	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View())
	require.False(t, f.store.Exists(), "nothing stored")
	require.Len(t, f.svc.Tokens(), 1, "client not rebuilt")

	form := f.vm.State().Form
	require.Equal(t, alice.Email, form.Email, "form keeps its values")
	require.Equal(t, "wrong", form.Password)
}

func TestLogin_TransportErrorPassesThrough(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vm.RestoreSession(context.Background()))
	f.svc.LoginErr = service.ErrTimeout

	err := f.vm.Login(context.Background(), alice.Email, "alice-pw")
	require.ErrorIs(t, err, service.ErrTimeout)
	require.False(t, f.store.Exists())
}

func TestLogin_ProfileWithoutRole(t *testing.T) {
	f := newFixture(t)
	f.svc.AddUser("ivo@example.com", "ivo-pw", service.User{ID: "u9", Name: "Ivo"})
	require.NoError(t, f.vm.RestoreSession(context.Background()))

	err := f.vm.Login(context.Background(), "ivo@example.com", "ivo-pw")
	require.ErrorIs(t, err, viewmodel.ErrIncompleteProfile)
	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View())
	require.False(t, f.store.Exists(), "nothing stored")
}

func TestMutations_RequireSession(t *testing.T) {
	f := newFixture(t, viewmodel.WithConfirmer(viewmodel.AlwaysConfirm))
	f.svc.AddTask("t1", "Buy milk", "team-A")
	require.NoError(t, f.vm.RestoreSession(context.Background()))

	task, err := f.vm.CreateTask(context.Background(), "Buy eggs")
	require.ErrorIs(t, err, viewmodel.ErrNotAuthenticated)
	require.Nil(t, task)

	deleted, err := f.vm.DeleteTask(context.Background(), "t1")
	require.ErrorIs(t, err, viewmodel.ErrNotAuthenticated)
	require.False(t, deleted)

	require.Zero(t, f.svc.Calls(testutil.OpCreate))
	require.Zero(t, f.svc.Calls(testutil.OpDelete))
	require.Empty(t, f.svc.Deleted())
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vm.RestoreSession(context.Background()))

	require.NoError(t, f.vm.Register(context.Background(), "Carol", "carol@example.com", "carol-pw"))

	form := f.vm.State().Form
	require.Equal(t, viewmodel.ModeLogin, form.Mode)
	require.Empty(t, form.Password)
	require.Equal(t, "carol@example.com", form.Email)
	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View(), "registering does not log in")

	require.NoError(t, f.vm.Login(context.Background(), "carol@example.com", "carol-pw"))
}

func TestRegister_Failure(t *testing.T) {
	t.Run("server message", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vm.RestoreSession(context.Background()))

		err := f.vm.Register(context.Background(), "Alice", alice.Email, "x")
		var regErr *viewmodel.RegisterError
		require.ErrorAs(t, err, &regErr)
		require.Equal(t, "email already registered", regErr.Message)
		require.EqualError(t, err, "registration failed: email already registered")

		form := f.vm.State().Form
		require.Equal(t, viewmodel.ModeRegister, form.Mode, "form stays on register")
		require.Equal(t, "x", form.Password)
	})

	t.Run("fallback", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.vm.RestoreSession(context.Background()))
		f.svc.RegisterErr = errors.New("connection refused")

		err := f.vm.Register(context.Background(), "Dan", "dan@example.com", "x")
		require.EqualError(t, err, "registration failed: unknown error")
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t, alice)
	_, err := f.vm.ListTasks(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.vm.Logout(context.Background()))

	require.Equal(t, viewmodel.ViewAuthForm, f.vm.View())
	require.Empty(t, f.vm.Token())
	require.Nil(t, f.vm.User())
	require.Empty(t, f.vm.Tasks())
	require.False(t, f.store.Exists())
	require.Equal(t, []string{"token-u1", ""}, f.svc.Tokens(), "client rebuilt without a token")

	require.ErrorIs(t, f.vm.Logout(context.Background()), session.ErrNoSession)
}

func TestCreateTask_EmptyTitle(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t, alice)

	for _, title := range []string{"", "   "} {
		task, err := f.vm.CreateTask(context.Background(), title)
		require.NoError(t, err)
		require.Nil(t, task)
	}
	require.Zero(t, f.svc.Calls(testutil.OpCreate))
}

func TestCreateTask_SendsOneMutation(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t, alice)

	task, err := f.vm.CreateTask(context.Background(), "Buy milk")
	require.NoError(t, err)
	require.Equal(t, "Buy milk", task.Title)

	require.Equal(t, []testutil.CreateCall{{Title: "Buy milk", TeamID: "team-B"}}, f.svc.Created())
	require.Empty(t, f.vm.State().NewTaskTitle, "input cleared")
	require.Zero(t, f.svc.Calls(testutil.OpList), "no refetch on create")
}

func TestCreateTask_DefaultTeam(t *testing.T) {
	t.Run("built in", func(t *testing.T) {
		f := newFixture(t)
		f.loggedIn(t, bob)

		_, err := f.vm.CreateTask(context.Background(), "Buy eggs")
		require.NoError(t, err)
		require.Equal(t, viewmodel.DefaultTeam, f.svc.Created()[0].TeamID)
	})

	t.Run("configured", func(t *testing.T) {
		f := newFixture(t, viewmodel.WithDefaultTeam("team-X"))
		f.loggedIn(t, bob)

		_, err := f.vm.CreateTask(context.Background(), "Buy eggs")
		require.NoError(t, err)
		require.Equal(t, "team-X", f.svc.Created()[0].TeamID)
		require.Equal(t, "team-X", f.vm.Team())
	})

	t.Run("explicit team wins", func(t *testing.T) {
		f := newFixture(t)
		f.loggedIn(t, alice)

		_, err := f.vm.CreateTaskInTeam(context.Background(), "Buy eggs", "team-C")
		require.NoError(t, err)
		require.Equal(t, "team-C", f.svc.Created()[0].TeamID)
	})
}

func TestCreateTask_FailureKeepsInput(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t, alice)
	f.svc.CreateErr = &service.APIError{Status: http.StatusBadRequest, Message: "title too long"}

	task, err := f.vm.CreateTask(context.Background(), "Buy milk")
	require.Nil(t, task)
	require.EqualError(t, err, "title too long")
	require.Equal(t, "Buy milk", f.vm.State().NewTaskTitle)
}

func TestDeleteTask_Declined(t *testing.T) {
	f := newFixture(t)
	f.svc.AddTask("t1", "Buy milk", "team-B")
	f.loggedIn(t, alice)

	var prompts []string
	f.vm.SetConfirmer(viewmodel.ConfirmFunc(func(prompt string) bool {
		prompts = append(prompts, prompt)
		return false
	}))
	_, err := f.vm.ListTasks(context.Background())
	require.NoError(t, err)

	deleted, err := f.vm.DeleteTask(context.Background(), "t1")
	require.NoError(t, err)
	require.False(t, deleted)
	require.Zero(t, f.svc.Calls(testutil.OpDelete))
	require.Equal(t, 1, f.svc.Calls(testutil.OpList), "no refetch")
	require.Equal(t, []string{`Delete "Buy milk"? (admins only)`}, prompts)
}

func TestDeleteTask_DeniedByDefault(t *testing.T) {
	f := newFixture(t)
	f.svc.AddTask("t1", "Buy milk", "team-B")
	f.loggedIn(t, alice)

	deleted, err := f.vm.DeleteTask(context.Background(), "t1")
	require.NoError(t, err)
	require.False(t, deleted)
	require.Zero(t, f.svc.Calls(testutil.OpDelete))
}

func TestDeleteTask_Confirmed(t *testing.T) {
	f := newFixture(t, viewmodel.WithConfirmer(viewmodel.AlwaysConfirm))
	f.svc.AddTask("t1", "Buy milk", "team-B")
	f.svc.AddTask("t2", "Buy eggs", "team-B")
	f.loggedIn(t, alice)

	deleted, err := f.vm.DeleteTask(context.Background(), "t1")
	require.NoError(t, err)
	require.True(t, deleted)

	require.Equal(t, 1, f.svc.Calls(testutil.OpDelete))
	require.Equal(t, 1, f.svc.Calls(testutil.OpList), "exactly one refetch")
	require.Equal(t, []string{"t1"}, f.svc.Deleted())
	require.Len(t, f.vm.Tasks(), 1)
}

func TestDeleteTask_ServerRefusesMember(t *testing.T) {
	f := newFixture(t, viewmodel.WithConfirmer(viewmodel.AlwaysConfirm))
	f.svc.AddTask("t1", "Buy milk", "team-A")
	f.loggedIn(t, bob)

	require.False(t, f.vm.CanDelete(), "affordance hidden")

	// The hidden affordance is not a guard: the request goes out and the
	// server's refusal comes back unchanged.
	deleted, err := f.vm.DeleteTask(context.Background(), "t1")
	require.False(t, deleted)
	require.ErrorIs(t, err, service.ErrUnauthorized)
	require.EqualError(t, err, "Unauthorized: admin only")
	require.Zero(t, f.svc.Calls(testutil.OpList))
}

func TestCanDelete(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.vm.CanDelete())

	f.loggedIn(t, alice)
	require.True(t, f.vm.CanDelete())

	require.NoError(t, f.vm.Logout(context.Background()))
	f.loggedIn(t, bob)
	require.False(t, f.vm.CanDelete())
}

func TestOnTaskCreatedPush(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, viewmodel.WithObserver(obs))
	f.loggedIn(t, alice)

	task := service.Task{ID: "t5", Title: "From elsewhere", Status: "todo"}
	require.NoError(t, f.vm.OnTaskCreatedPush(context.Background(), task))
	require.NoError(t, f.vm.OnTaskCreatedPush(context.Background(), task))

	require.Equal(t, []service.Task{task, task}, obs.created, "no deduplication")
	require.Equal(t, 2, f.svc.Calls(testutil.OpList))
	require.Equal(t, 2, obs.refreshed)
}

func TestOnTaskCreatedPush_ConcurrentWithUserActions(t *testing.T) {
	f := newFixture(t, viewmodel.WithConfirmer(viewmodel.AlwaysConfirm))
	for i := 0; i < 10; i++ {
		f.svc.AddTask(fmt.Sprintf("seed%d", i), "seed", "team-B")
	}
	f.loggedIn(t, alice)

	const pushes = 20
	var wg sync.WaitGroup
	for i := 0; i < pushes; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			task := service.Task{ID: fmt.Sprintf("p%d", i), Title: "pushed"}
			assert.NoError(t, f.vm.OnTaskCreatedPush(context.Background(), task))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := f.vm.CreateTask(context.Background(), fmt.Sprintf("mine %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, pushes, f.svc.Calls(testutil.OpList), "one refetch per push")
	require.Equal(t, pushes, f.svc.Calls(testutil.OpCreate))
	require.False(t, f.vm.Loading())
}

func TestSubscribe(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, viewmodel.WithObserver(obs))
	f.loggedIn(t, alice)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.vm.Subscribe(ctx) }()

	select {
	case <-f.svc.Subscribed():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not registered")
	}

	f.svc.Push(service.Task{ID: "t7", Title: "Live", Status: "todo", TeamID: "team-B"})
	require.Eventually(t, func() bool { return obs.createdCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, f.svc.Calls(testutil.OpList))
	require.Len(t, f.vm.Tasks(), 1)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestSubscribe_RefetchFailureReported(t *testing.T) {
	obs := &recordingObserver{}
	f := newFixture(t, viewmodel.WithObserver(obs))
	f.loggedIn(t, alice)
	f.svc.ListTasksErr = service.ErrTimeout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.vm.Subscribe(ctx)
	<-f.svc.Subscribed()

	f.svc.Push(service.Task{ID: "t8", Title: "Live"})
	require.Eventually(t, func() bool {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return len(obs.failures) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, obs.failures[0], service.ErrTimeout)
}

func TestSubscribe_RequiresSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.vm.RestoreSession(context.Background()))

	require.ErrorIs(t, f.vm.Subscribe(context.Background()), viewmodel.ErrNotAuthenticated)
	require.Zero(t, f.svc.Calls(testutil.OpSubscribe))
}

// blockingService holds ListTasks until released so a credential change can
// overtake it.
type blockingService struct {
	*testutil.FakeService
	entered chan struct{}
	release chan struct{}
}

func (b *blockingService) ListTasks(ctx context.Context) ([]service.Task, error) {
	close(b.entered)
	<-b.release
	return []service.Task{{ID: "stale", Title: "from the old session"}}, nil
}

func TestListTasks_StaleResultDropped(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddUser(alice.Email, "alice-pw", alice)
	blocking := &blockingService{FakeService: svc, entered: make(chan struct{}), release: make(chan struct{})}

	first := true
	factory := func(ctx context.Context, token string) (service.Service, error) {
		if _, err := svc.Connect(ctx, token); err != nil {
			return nil, err
		}
		if first {
			first = false
			return blocking, nil
		}
		return svc, nil
	}
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	u := alice
	require.NoError(t, store.Save(&session.Session{Token: "token-u1", User: &u}))
	vm := viewmodel.New(store, factory)
	require.NoError(t, vm.RestoreSession(context.Background()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		vm.ListTasks(context.Background())
	}()
	<-blocking.entered

	require.NoError(t, vm.Logout(context.Background()))
	close(blocking.release)
	<-done

	require.Empty(t, vm.Tasks(), "result from before logout discarded")
	require.False(t, vm.State().Fetched)
}
