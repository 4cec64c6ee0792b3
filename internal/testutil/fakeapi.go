package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskdash/internal/config"
	"taskdash/internal/service"
)

type apiAccount struct {
	hash []byte
	user service.User
}

type gqlBody struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type wsFrame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FakeAPI is an httptest gateway speaking the task service's REST, GraphQL
// and graphql-transport-ws protocols, backed by memory.
type FakeAPI struct {
	*httptest.Server

	mu         sync.Mutex
	accounts   map[string]apiAccount   // email -> account
	tokens     map[string]service.User // token -> user
	tasks      []service.Task
	nextID     int
	ops        map[string]int
	subs       map[chan service.Task]struct{}
	subscribed chan struct{}
}

// NewFakeAPI starts a FakeAPI that is closed when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	a := &FakeAPI{
		accounts:   make(map[string]apiAccount),
		tokens:     make(map[string]service.User),
		ops:        make(map[string]int),
		subs:       make(map[chan service.Task]struct{}),
		subscribed: make(chan struct{}, 16),
	}

	r := chi.NewRouter()
	r.Post("/api/users/login", a.handleLogin)
	r.Post("/api/users/register", a.handleRegister)
	r.Post("/graphql", a.handleGraphQL)
	r.Get("/graphql", a.handleSubscriptions)

	a.Server = httptest.NewServer(r)
	t.Cleanup(a.Close)
	return a
}

// Config returns a config pointing at the fake gateway.
func (a *FakeAPI) Config(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Dir: t.TempDir()}
	if err := cfg.SetAPIURL(a.URL); err != nil {
		t.Fatalf("failed to configure api url: %v", err)
	}
	return cfg
}

// AddUser creates an account with a bcrypt-hashed password.
func (a *FakeAPI) AddUser(name, email, password string, role service.Role, teamID string) service.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	user := service.User{ID: fmt.Sprintf("u%d", a.nextID), Name: name, Email: email, Role: role, TeamID: teamID}
	a.accounts[email] = apiAccount{hash: hash, user: user}
	return user
}

// IssueToken returns a fresh token for an existing account.
func (a *FakeAPI) IssueToken(email string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.accounts[email]
	if !ok {
		panic("unknown account: " + email)
	}
	token := uuid.NewString()
	a.tokens[token] = acct.user
	return token
}

// Ops returns how many GraphQL requests were served for op.
func (a *FakeAPI) Ops(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ops[op]
}

// Tasks returns the stored tasks.
func (a *FakeAPI) Tasks() []service.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]service.Task(nil), a.tasks...)
}

// Subscribed is signalled when a subscription becomes active.
func (a *FakeAPI) Subscribed() <-chan struct{} {
	return a.subscribed
}

// Push creates a task as another client would and notifies subscribers.
func (a *FakeAPI) Push(title, teamID string) service.Task {
	return a.createTask(title, teamID)
}

func (a *FakeAPI) createTask(title, teamID string) service.Task {
	a.mu.Lock()
	a.nextID++
	task := service.Task{ID: fmt.Sprintf("t%d", a.nextID), Title: title, Status: "todo", TeamID: teamID}
	a.tasks = append(a.tasks, task)
	subs := make([]chan service.Task, 0, len(a.subs))
	for ch := range a.subs {
		subs = append(subs, ch)
	}
	a.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- task:
		default:
		}
	}
	return task
}

func (a *FakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	a.mu.Lock()
	acct, ok := a.accounts[req.Email]
	a.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
		return
	}

	token := a.IssueToken(req.Email)
	writeJSON(w, http.StatusOK, service.Auth{Token: token, User: acct.user})
}

func (a *FakeAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Email and password are required"})
		return
	}

	a.mu.Lock()
	_, exists := a.accounts[req.Email]
	a.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "Email already registered"})
		return
	}

	a.AddUser(req.Name, req.Email, req.Password, service.RoleMember, "")
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered"})
}

func (a *FakeAPI) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req gqlBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, gqlErrors("invalid body", "BAD_REQUEST"))
		return
	}

	op := operationOf(req.Query)
	a.mu.Lock()
	a.ops[op]++
	user, ok := a.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	a.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusOK, gqlErrors("Unauthorized", "UNAUTHENTICATED"))
		return
	}

	switch op {
	case OpList:
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"tasks": a.Tasks()}})
	case OpCreate:
		title, _ := req.Variables["title"].(string)
		teamID, _ := req.Variables["teamId"].(string)
		task := a.createTask(title, teamID)
		created := service.Task{ID: task.ID, Title: task.Title, Status: task.Status}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"createTask": created}})
	case OpDelete:
		if !user.IsAdmin() {
			writeJSON(w, http.StatusOK, gqlErrors("Unauthorized: admin only", "FORBIDDEN"))
			return
		}
		id, _ := req.Variables["id"].(string)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleteTask": a.deleteTask(id)}})
	default:
		writeJSON(w, http.StatusOK, gqlErrors("unknown operation", "BAD_REQUEST"))
	}
}

func (a *FakeAPI) deleteTask(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, t := range a.tasks {
		if t.ID == id {
			a.tasks = append(a.tasks[:i], a.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (a *FakeAPI) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"graphql-transport-ws"}})
	if err != nil {
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	var hello wsFrame
	if err := wsjson.Read(ctx, conn, &hello); err != nil || hello.Type != "connection_init" {
		conn.Close(4400, "expected connection_init")
		return
	}
	var params struct {
		Authorization string `json:"Authorization"`
	}
	json.Unmarshal(hello.Payload, &params)
	a.mu.Lock()
	_, ok := a.tokens[strings.TrimPrefix(params.Authorization, "Bearer ")]
	a.mu.Unlock()
	if !ok {
		conn.Close(4403, "Forbidden")
		return
	}
	if err := wsjson.Write(ctx, conn, wsFrame{Type: "connection_ack"}); err != nil {
		return
	}

	var sub wsFrame
	if err := wsjson.Read(ctx, conn, &sub); err != nil || sub.Type != "subscribe" {
		conn.Close(4400, "expected subscribe")
		return
	}

	ch := make(chan service.Task, 16)
	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.subs, ch)
		a.mu.Unlock()
	}()
	select {
	case a.subscribed <- struct{}{}:
	default:
	}

	ctx = conn.CloseRead(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-ch:
			pushed := service.Task{ID: task.ID, Title: task.Title, Status: task.Status}
			payload, _ := json.Marshal(map[string]any{"data": map[string]any{"taskCreated": pushed}})
			if err := wsjson.Write(ctx, conn, wsFrame{ID: sub.ID, Type: "next", Payload: payload}); err != nil {
				return
			}
		}
	}
}

// operationOf picks the root field a query selects.
func operationOf(query string) string {
	switch {
	case strings.Contains(query, "deleteTask"):
		return OpDelete
	case strings.Contains(query, "createTask"):
		return OpCreate
	case strings.Contains(query, "tasks"):
		return OpList
	}
	return "unknown"
}

func gqlErrors(msg, code string) map[string]any {
	return map[string]any{
		"errors": []map[string]any{{"message": msg, "extensions": map[string]any{"code": code}}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
